package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
	dispatchx "github.com/pocketsage/pocketsage/agent/dispatch"
)

type turnRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

type turnResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newServer(dispatcher *dispatchx.Dispatcher, release bool) *gin.Engine {
	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/v1/turns", handleTurn(dispatcher))
	router.POST("/v1/sessions/:session_id/reset", handleReset(dispatcher))

	return router
}

func handleTurn(dispatcher *dispatchx.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req turnRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		reply, err := dispatcher.HandleTurn(c.Request.Context(), req.SessionID, req.UserID, req.Message)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, turnResponse{Response: reply})
		case errors.Is(err, contractx.ErrLockConflict):
			c.JSON(http.StatusTooManyRequests, errorResponse{Error: "a turn for this session is already in flight"})
		case errors.Is(err, dispatchx.ErrInvalidMessage),
			errors.Is(err, dispatchx.ErrInvalidSession),
			errors.Is(err, dispatchx.ErrInvalidUser):
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		default:
			log.Error().Err(err).Str("session_id", req.SessionID).Msg("turn failed")
			// The dispatcher still composes a user-facing reply on
			// internal failure, so return it rather than a bare 500.
			if reply != "" {
				c.JSON(http.StatusOK, turnResponse{Response: reply})
				return
			}
			c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
	}
}

func handleReset(dispatcher *dispatchx.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if err := dispatcher.ResetSession(c.Request.Context(), sessionID); err != nil {
			if errors.Is(err, dispatchx.ErrInvalidSession) {
				c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			log.Error().Err(err).Str("session_id", sessionID).Msg("session reset failed")
			c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "reset"})
	}
}
