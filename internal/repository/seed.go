package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
)

// DemoOpportunities are the entries a fresh development board starts with.
func DemoOpportunities() []models.Candidate {
	btcConfidence := 75.0
	ethConfidence := 85.0
	return []models.Candidate{
		{
			ID:         "opp_001",
			Title:      "Bitcoin Accumulation Opportunity",
			Asset:      "bitcoin",
			Type:       models.TypeBuy,
			Confidence: &btcConfidence,
			Rationale:  "Strong support level at $60k with increasing institutional adoption",
			Sources:    []string{"coingecko", "santiment"},
			Metrics: map[string]any{
				"current_price": 61500.0,
				"support_level": 60000.0,
			},
			Tags: []string{"btc", "accumulation", "long-term"},
		},
		{
			ID:         "opp_002",
			Title:      "Ethereum Layer 2 Growth",
			Asset:      "ethereum",
			Type:       models.TypeWatch,
			Confidence: &ethConfidence,
			Rationale:  "Increasing L2 activity and upcoming network upgrades",
			Sources:    []string{"santiment", "firecrawl"},
			Metrics: map[string]any{
				"l2_tvl":         "10B",
				"network_growth": "+15%",
			},
			Tags: []string{"eth", "layer2", "defi"},
		},
	}
}

// Seed adds every candidate whose id is not present yet.
func Seed(ctx context.Context, store Store, candidates []models.Candidate, logger *zap.Logger) error {
	for _, c := range candidates {
		if c.ID != "" {
			_, err := store.Get(ctx, c.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
		}
		o, err := store.Add(ctx, c)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("seeded opportunity", zap.String("id", o.ID), zap.String("asset", o.Asset))
		}
	}
	return nil
}
