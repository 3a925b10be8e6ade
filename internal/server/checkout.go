package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lettercast/lettercast/internal/billing/checkout"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
)

type startCheckoutRequest struct {
	Interval string `json:"interval"`
}

// StartCheckout opens a provider checkout session for a paid upgrade. The
// publication owner cannot subscribe to their own publication, and a user
// already holding an active paid subscription is rejected before any
// provider call.
func (s *Server) StartCheckout(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	publicationID, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req startCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	interval, err := billingdomain.ParseInterval(req.Interval)
	if err != nil {
		AbortWithError(c, newValidationError("interval", "invalid_interval", "interval must be month or year"))
		return
	}

	publication, err := s.publicationSvc.GetByID(c.Request.Context(), publicationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if publication.OwnerUserID == user.ID {
		AbortWithError(c, billingdomain.ErrOwnerCheckout)
		return
	}

	alreadyPaid, err := s.subscriptionSvc.HasActivePaid(c.Request.Context(), user.ID, publicationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if alreadyPaid {
		AbortWithError(c, billingdomain.ErrAlreadySubscribed)
		return
	}

	session, err := s.initiator.Start(c.Request.Context(), checkout.Input{
		UserID:      user.ID,
		UserEmail:   user.Email,
		UserName:    user.Name,
		Publication: publication,
		Interval:    interval,
		SuccessURL:  s.cfg.PublicBaseURL + "/" + publication.Slug + "?checkout=success",
		CancelURL:   s.cfg.PublicBaseURL + "/" + publication.Slug + "?checkout=canceled",
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":   session.SessionID,
		"redirect_url": session.RedirectURL,
	})
}

// CreatePortalSession opens the provider's self-serve billing portal for
// users with at least one paid relationship.
func (s *Server) CreatePortalSession(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if s.gateway == nil {
		AbortWithError(c, billingdomain.ErrNotConfigured)
		return
	}

	customerID, err := s.subscriptionSvc.BillingCustomerID(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	portalURL, err := s.gateway.CreatePortalSession(c.Request.Context(), customerID, s.cfg.PublicBaseURL+"/account")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portal_url": portalURL})
}
