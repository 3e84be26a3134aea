package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/reid/internal/models"
	"github.com/your-org/reid/pkg/dto"
)

// StatsStore reads and resets visit counters.
type StatsStore interface {
	Stats(ctx context.Context, now time.Time) (models.VisitStats, error)
	CloseOpenVisits(ctx context.Context, at time.Time) (int64, error)
}

type StatsHandler struct {
	store StatsStore
	now   func() time.Time
}

func NewStatsHandler(store StatsStore) *StatsHandler {
	return &StatsHandler{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Stats returns open visits and visits started today (UTC).
func (h *StatsHandler) Stats(c *gin.Context) {
	st, err := h.store.Stats(c.Request.Context(), h.now())
	if err != nil {
		slog.Error("visit stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, dto.StatsResponse{
		ActiveVisitors: st.ActiveVisitors,
		TotalToday:     st.TotalToday,
	})
}

// ResetDaily closes every open visit.
func (h *StatsHandler) ResetDaily(c *gin.Context) {
	at := h.now()
	n, err := h.store.CloseOpenVisits(c.Request.Context(), at)
	if err != nil {
		slog.Error("reset daily", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	slog.Info("daily reset", "closed", n)
	c.JSON(http.StatusOK, dto.ResetResponse{Status: "reset_ok", Closed: n, At: at.Format(time.RFC3339)})
}
