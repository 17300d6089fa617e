package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arung-agamani/roomd/internal/room"
)

// requireAuth validates the request's Bearer token against s.issuer and
// enforces its room scope against the :id route param, rejecting with 401
// on a missing or invalid token and 403 on a room scope mismatch.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "authentication required"})
		return
	}

	claims, err := s.issuer.ValidateToken(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid or expired token"})
		return
	}

	if err := claims.CheckRoom(c.Param("id")); err != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": "error", "error": err.Error()})
		return
	}

	c.Set("claims", claims)
	c.Next()
}

// roomOrNotFound resolves the :id path param to a Controller, writing a 404
// response and returning ok=false if it doesn't exist.
func (s *Server) roomOrNotFound(c *gin.Context) (*room.Controller, bool) {
	id := c.Param("id")
	ctrl, found := s.rooms.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": fmt.Sprintf("room %q not found", id)})
		return nil, false
	}
	return ctrl, true
}
