// Package api serves the admin HTTP API for sessions, the dictionary, and voice preferences.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"yomiage-bot/backend/internal/state"
	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Admin is what the API manages
type Admin interface {
	Sessions() []state.SessionSnapshot
	Leave(guildID string) error
	DictionaryEntries(ctx context.Context, limit, offset int) ([]state.PronunciationEntry, error)
	AddDictionaryEntry(ctx context.Context, word, reading string) (state.PronunciationEntry, error)
	RemoveDictionaryEntry(ctx context.Context, word string) error
	Voices() []string
	VoicePreference(ctx context.Context, userID string) string
	SetVoicePreference(ctx context.Context, userID, voice string) error
	ClearVoicePreference(ctx context.Context, userID string) error
}

// NewRouter builds the gin engine. A non-empty token is required as a bearer
// token on every /api route; /health stays open.
func NewRouter(admin Admin, token string, log *zap.Logger) *gin.Engine {
	log = logger.OrNop(log)
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": len(admin.Sessions())})
	})

	api := router.Group("/api")
	api.Use(bearerAuth(token))
	{
		api.GET("/sessions", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"sessions": admin.Sessions()})
		})

		// Leave; unknown guilds are a no-op
		api.DELETE("/sessions/:guild", func(c *gin.Context) {
			if err := admin.Leave(c.Param("guild")); err != nil {
				log.Warn("Failed to leave voice", zap.String("guild_id", c.Param("guild")), zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to disconnect"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "left"})
		})

		api.GET("/dictionary", func(c *gin.Context) {
			limit := queryInt(c, "limit", defaultListLimit)
			if limit <= 0 || limit > maxListLimit {
				limit = defaultListLimit
			}
			offset := queryInt(c, "offset", 0)
			if offset < 0 {
				offset = 0
			}

			entries, err := admin.DictionaryEntries(c.Request.Context(), limit, offset)
			if err != nil {
				log.Error("Failed to list dictionary", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list dictionary"})
				return
			}
			if entries == nil {
				entries = []state.PronunciationEntry{}
			}
			c.JSON(http.StatusOK, gin.H{"entries": entries, "limit": limit, "offset": offset})
		})

		api.PUT("/dictionary/:word", func(c *gin.Context) {
			var req struct {
				Reading string `json:"reading" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			entry, err := admin.AddDictionaryEntry(c.Request.Context(), c.Param("word"), req.Reading)
			if err != nil {
				var invalid state.ErrInvalidPronunciation
				if errors.As(err, &invalid) {
					c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
					return
				}
				log.Error("Failed to store dictionary entry", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store entry"})
				return
			}
			c.JSON(http.StatusOK, entry)
		})

		api.DELETE("/dictionary/:word", func(c *gin.Context) {
			err := admin.RemoveDictionaryEntry(c.Request.Context(), c.Param("word"))
			if errors.Is(err, apperrors.ErrEntryNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
				return
			}
			if err != nil {
				log.Error("Failed to remove dictionary entry", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove entry"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "removed"})
		})

		api.GET("/voices", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"voices": admin.Voices()})
		})

		api.GET("/users/:id/voice", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"voice": admin.VoicePreference(c.Request.Context(), c.Param("id"))})
		})

		api.PUT("/users/:id/voice", func(c *gin.Context) {
			var req struct {
				Voice string `json:"voice" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			err := admin.SetVoicePreference(c.Request.Context(), c.Param("id"), req.Voice)
			if errors.Is(err, apperrors.ErrUnknownVoice) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "voices": admin.Voices()})
				return
			}
			if err != nil {
				log.Error("Failed to store voice preference", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store preference"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"voice": req.Voice})
		})

		api.DELETE("/users/:id/voice", func(c *gin.Context) {
			if err := admin.ClearVoicePreference(c.Request.Context(), c.Param("id")); err != nil {
				log.Error("Failed to clear voice preference", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear preference"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"voice": admin.VoicePreference(c.Request.Context(), c.Param("id"))})
		})
	}

	return router
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func bearerAuth(token string) gin.HandlerFunc {
	want := []byte("Bearer " + token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("Authorization")), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
