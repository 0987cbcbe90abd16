package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           Crypto Analyst Opportunity API
// @version         0.1.0
// @description     Opportunity board: create, update, list and stream trading opportunities.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
