package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leozw/domain-activator/internal/core"
)

type SubmitDomainRequest struct {
	Hostname  string `json:"hostname" binding:"required"`
	Canonical string `json:"canonical"`
}

func (h *Handler) SubmitDomain(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req SubmitDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.domains.Submit(c.Request.Context(), tenantID, req.Hostname, core.Canonical(req.Canonical))
	if err != nil {
		h.fail(c, err, "submit domain")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"request": status.Request,
		"status":  status.Status,
	})
}

func (h *Handler) GetDomainStatus(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	status, err := h.domains.Status(c.Request.Context(), tenantID)
	if err != nil {
		h.fail(c, err, "get domain status")
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) RestartDomain(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	status, err := h.domains.Restart(c.Request.Context(), tenantID)
	if err != nil {
		h.fail(c, err, "restart verification")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"request": status.Request,
		"message": "Verification restarted",
	})
}

func (h *Handler) RecheckDomain(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	if err := h.domains.Recheck(c.Request.Context(), tenantID); err != nil {
		h.fail(c, err, "trigger check")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Check queued"})
}

func (h *Handler) RemoveDomain(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	if err := h.domains.Remove(c.Request.Context(), tenantID); err != nil {
		h.fail(c, err, "remove domain")
		return
	}

	c.Status(http.StatusNoContent)
}
