package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/userdir/internal/domain/errors"
	"github.com/polkiloo/userdir/internal/server/http/dto"
)

// BillingHandler accepts billing events after the upstream gateway has
// verified and decoded the provider's webhook payload.
type BillingHandler struct {
	facade BillingFacade
}

// NewBillingHandler creates BillingHandler instance.
func NewBillingHandler(facade BillingFacade) *BillingHandler {
	return &BillingHandler{facade: facade}
}

// Events handles POST /api/billing/events.
func (h *BillingHandler) Events(c *gin.Context) {
	var req dto.BillingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CustomerID == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	var err error
	switch req.Type {
	case dto.BillingEventCustomerAttached:
		if req.Login == "" {
			c.Status(http.StatusBadRequest)
			return
		}
		_, err = h.facade.AttachCustomer(c.Request.Context(), req.Login, req.CustomerID)
	case dto.BillingEventSubscriptionUpdated:
		_, err = h.facade.ApplySubscription(c.Request.Context(), req.CustomerID, req.Active)
	default:
		c.Status(http.StatusBadRequest)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			c.Status(http.StatusNotFound)
		case errors.Is(err, domainErrors.ErrAlreadyExists):
			c.Status(http.StatusConflict)
		case errors.Is(err, domainErrors.ErrInvalidUser):
			c.Status(http.StatusBadRequest)
		default:
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.Status(http.StatusOK)
}
