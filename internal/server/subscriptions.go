package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SubscribeFree creates the free relationship between the caller and a
// publication. Subscribing twice is a no-op; an existing paid record is
// never downgraded by this path.
func (s *Server) SubscribeFree(c *gin.Context) {
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

	record, err := s.subscriptionSvc.SubscribeFree(c.Request.Context(), user.ID, publicationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) ListOwnSubscriptions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	records, err := s.subscriptionSvc.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": records})
}
