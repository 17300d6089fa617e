package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arung-agamani/roomd/internal/authtoken"
)

// login handles POST /api/auth/login. An optional "room" field scopes the
// issued token to that one room; omitted, the token authorizes every room
// this process serves.
func (s *Server) login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Room     string `json:"room"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}

	token, err := s.issuer.Authenticate(body.Username, body.Password, body.Room, c.Request.RemoteAddr)
	if err != nil {
		slog.Warn("failed login attempt", "remote", c.Request.RemoteAddr, "error", err)

		if errors.Is(err, authtoken.ErrRateLimited) {
			remaining := s.issuer.RemainingLockout(c.Request.RemoteAddr)
			c.Header("Retry-After", fmt.Sprintf("%d", int(remaining.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{"status": "error", "error": "too many login attempts, please try again later"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "token": token, "username": body.Username})
}
