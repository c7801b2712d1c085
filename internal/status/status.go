// Package status serves a small read-only HTTP surface for operators: liveness
// and a look at one chat's session.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/maaaruch/tg-party-bot/internal/domain"
	"github.com/maaaruch/tg-party-bot/internal/lobby"
)

type Inspector interface {
	Overview(ctx context.Context, sessionID int64) (lobby.Overview, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type sessionView struct {
	ID         int64           `json:"id"`
	State      string          `json:"state"`
	Kind       string          `json:"kind,omitempty"`
	Members    []string        `json:"members"`
	Prompts    int             `json:"prompts"`
	Collecting *timerView      `json:"collection,omitempty"`
	GameID     string          `json:"game_id,omitempty"`
	Snapshot   json.RawMessage `json:"snapshot,omitempty"`
}

type timerView struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewRouter builds the gin engine with request logging through zerolog.
func NewRouter(inspector Inspector, db Pinger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/healthz") {
			return
		}
		log.Info().Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	})

	r.GET("/healthz", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	r.GET("/sessions/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
			return
		}
		ov, err := inspector.Overview(c.Request.Context(), id)
		if errors.Is(err, domain.ErrEmptySession) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		if err != nil {
			log.Error().Err(err).Int64("session", id).Msg("overview")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}

		view := sessionView{
			ID:      ov.Session.ID,
			State:   string(ov.Session.State),
			Kind:    string(ov.Session.Kind),
			Members: ov.Members,
			Prompts: ov.Prompts,
		}
		if ov.Timer != nil {
			view.Collecting = &timerView{Start: ov.Timer.Start, End: ov.Timer.End}
		}
		if ov.Game != nil {
			view.GameID = ov.Game.ID
			view.Kind = string(ov.Game.Kind)
			view.Snapshot = ov.Game.Snapshot
		}
		c.JSON(http.StatusOK, view)
	})

	return r
}
