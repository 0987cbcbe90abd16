package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
)

// Fixed user-facing messages. Internal detail goes to the log only.
const (
	msgLoadFailed        = "failed to load opportunities"
	msgNotFound          = "opportunity not found"
	msgInvalid           = "invalid opportunity"
	msgInvalidTransition = "invalid status transition"
	msgInvalidBody       = "invalid request body"
	msgInvalidQuery      = "invalid query"
	msgUpstreamTimeout   = "upstream timeout"
	msgUpstreamFailed    = "upstream unavailable"
	msgInternal          = "internal error"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type listResponse struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Count         int                  `json:"count"`
}

// statusFor maps an error kind to the response status and fixed message.
func statusFor(err error) (int, string) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound, msgNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest, msgInvalid
	case apperr.KindInvalidTransition:
		return http.StatusBadRequest, msgInvalidTransition
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout, msgUpstreamTimeout
	case apperr.KindTransport, apperr.KindProtocol:
		return http.StatusBadGateway, msgUpstreamFailed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// detailFor returns the user-facing reason for client errors only.
func detailFor(err error) string {
	e, ok := apperr.As(err)
	if !ok {
		return ""
	}
	switch e.Kind {
	case apperr.KindValidation, apperr.KindInvalidTransition:
		return e.Message
	}
	return ""
}

func errorField(err error) zap.Field {
	if e, ok := apperr.As(err); ok {
		return zap.Object("error", e)
	}
	return zap.Error(err)
}

// fail logs err in full and writes the mapped status with a fixed message.
func fail(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, msg := statusFor(err)
	fields := []zap.Field{zap.String("op", op), zap.String("path", c.Request.URL.Path), errorField(err)}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Info("request rejected", fields...)
	}
	c.JSON(status, errorResponse{Error: msg, Detail: detailFor(err)})
}

func badRequest(c *gin.Context, msg, detail string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Detail: detail})
}
