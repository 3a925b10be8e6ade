package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Authentication is delegated to the edge proxy, which strips and re-sets
// these headers on every request. The service only trusts and parses them.
const (
	headerUserID    = "X-Auth-User-Id"
	headerUserEmail = "X-Auth-User-Email"
	headerUserName  = "X-Auth-User-Name"
)

const authUserKey = "auth_user"

type authUser struct {
	ID    snowflake.ID
	Email string
	Name  string
}

func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader(headerUserID))
		if rawID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		id, err := snowflake.ParseString(rawID)
		if err != nil || id == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(authUserKey, authUser{
			ID:    id,
			Email: strings.TrimSpace(c.GetHeader(headerUserEmail)),
			Name:  strings.TrimSpace(c.GetHeader(headerUserName)),
		})
		c.Next()
	}
}

func currentUser(c *gin.Context) (authUser, bool) {
	value, ok := c.Get(authUserKey)
	if !ok {
		return authUser{}, false
	}
	user, ok := value.(authUser)
	return user, ok
}

// CheckoutRateLimit throttles checkout session creation per user. Redis
// errors fail open.
func (s *Server) CheckoutRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		pricing := s.pricing.Get()
		key := "lettercast:checkout:" + user.ID.String()
		result, err := s.checkoutLimiter.Allow(c.Request.Context(), key, pricing.CheckoutRate, pricing.CheckoutBurst)
		if err != nil {
			s.log.Warn("checkout rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
