package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/domain-activator/internal/core"
	"github.com/leozw/domain-activator/internal/domains"
)

// ReadyFunc reports whether the process's backing stores are reachable.
type ReadyFunc func(ctx context.Context) error

type Handler struct {
	domains *domains.Service
	ready   ReadyFunc
	logger  *zap.Logger
}

func NewHandler(svc *domains.Service, ready ReadyFunc, logger *zap.Logger) *Handler {
	return &Handler{
		domains: svc,
		ready:   ready,
		logger:  logger,
	}
}

func (h *Handler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString("tenant_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid tenant"})
		return uuid.Nil, false
	}
	return id, true
}

// fail maps domain errors to HTTP responses. Unexpected errors are logged and
// never echoed to the client.
func (h *Handler) fail(c *gin.Context, err error, action string) {
	var cfgErr *core.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": cfgErr.Error(),
			"field": cfgErr.Field,
		})
	case errors.Is(err, core.ErrHostnameInUse):
		c.JSON(http.StatusConflict, gin.H{"error": "Hostname is already in use"})
	case errors.Is(err, core.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Operation not allowed in the current domain status"})
	case errors.Is(err, core.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
	case errors.Is(err, core.ErrNoDomainRequest):
		c.JSON(http.StatusNotFound, gin.H{"error": "No custom domain configured"})
	default:
		h.logger.Error("Failed to "+action,
			zap.String("tenant_id", c.GetString("tenant_id")),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}
