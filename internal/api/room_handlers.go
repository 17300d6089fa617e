package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arung-agamani/roomd/internal/tree"
)

const requestTimeout = 5 * time.Second

func (s *Server) play(c *gin.Context) {
	ctrl, ok := s.roomOrNotFound(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := ctrl.Play(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) pause(c *gin.Context) {
	ctrl, ok := s.roomOrNotFound(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := ctrl.Pause(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) skip(c *gin.Context) {
	ctrl, ok := s.roomOrNotFound(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := ctrl.Next(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) toggleRandom(c *gin.Context) {
	ctrl, ok := s.roomOrNotFound(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	random, err := ctrl.ToggleRandom(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "random": random})
}

func (s *Server) getPlaylist(c *gin.Context) {
	ctrl, ok := s.roomOrNotFound(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	pl, err := ctrl.GetPlaylist(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "playlist": pl})
}

func (s *Server) setPlaylist(c *gin.Context) {
	ctrl, ok := s.roomOrNotFound(c)
	if !ok {
		return
	}

	var pl tree.Playlist
	if err := c.ShouldBindJSON(&pl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid playlist body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := ctrl.SetPlaylist(ctx, &pl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) addPlaylist(c *gin.Context) {
	ctrl, ok := s.roomOrNotFound(c)
	if !ok {
		return
	}

	var body struct {
		Playlist tree.Playlist `json:"playlist"`
		Path     tree.TreePath `json:"path"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := ctrl.AddPlaylist(ctx, &body.Playlist, body.Path); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
