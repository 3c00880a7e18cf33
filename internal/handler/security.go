package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docebrew/cupcakeria/internal/domain/auth"
)

const customerKey = "customer"

// requireAPIKey authenticates the request via the X-API-Key header (or a
// Bearer token) and stores the resolved customer in the request context.
func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				key = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Code: "unauthorized", Message: "missing API key"})
			return
		}

		customer, err := s.verifier.Verify(c.Request.Context(), key)
		if err != nil {
			s.writeError(c, err)
			c.Abort()
			return
		}

		c.Set(customerKey, customer)
		c.Next()
	}
}

// currentCustomer returns the customer resolved by requireAPIKey. It must
// only be called on routes behind that middleware.
func currentCustomer(c *gin.Context) *auth.Customer {
	return c.MustGet(customerKey).(*auth.Customer)
}
