package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/reid/internal/models"
	"github.com/your-org/reid/pkg/dto"
)

// VisitorStore reads visitors and their visits.
type VisitorStore interface {
	ListVisitors(ctx context.Context, limit, offset int) ([]models.Visitor, int, error)
	GetVisitor(ctx context.Context, globalID string) (*models.Visitor, error)
	ListVisits(ctx context.Context, visitorID int64, limit int) ([]models.VisitEvent, error)
}

type VisitorHandler struct {
	store VisitorStore
}

func NewVisitorHandler(store VisitorStore) *VisitorHandler {
	return &VisitorHandler{store: store}
}

func (h *VisitorHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	visitors, total, err := h.store.ListVisitors(c.Request.Context(), limit, offset)
	if err != nil {
		slog.Error("list visitors", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list visitors"})
		return
	}

	resp := dto.VisitorListResponse{Visitors: make([]dto.VisitorResponse, 0, len(visitors)), Total: total}
	for _, v := range visitors {
		resp.Visitors = append(resp.Visitors, visitorToDTO(v))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VisitorHandler) Visits(c *gin.Context) {
	gid := c.Param("gid")
	v, err := h.store.GetVisitor(c.Request.Context(), gid)
	if err != nil {
		slog.Error("get visitor", "error", err, "global_id", gid)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load visitor"})
		return
	}
	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "visitor not found"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	visits, err := h.store.ListVisits(c.Request.Context(), v.ID, limit)
	if err != nil {
		slog.Error("list visits", "error", err, "global_id", gid)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list visits"})
		return
	}

	resp := dto.VisitListResponse{GlobalID: v.GlobalID, Visits: make([]dto.VisitResponse, 0, len(visits))}
	for _, ve := range visits {
		vr := dto.VisitResponse{
			ID:       ve.ID,
			CameraID: ve.CameraID,
			InTime:   ve.InTime.Format(time.RFC3339),
			Open:     ve.OutTime == nil,
		}
		if ve.OutTime != nil {
			vr.OutTime = ve.OutTime.Format(time.RFC3339)
		}
		resp.Visits = append(resp.Visits, vr)
	}
	c.JSON(http.StatusOK, resp)
}

func visitorToDTO(v models.Visitor) dto.VisitorResponse {
	return dto.VisitorResponse{
		GlobalID:    v.GlobalID,
		FirstSeenAt: v.FirstSeenAt.Format(time.RFC3339),
		LastSeenAt:  v.LastSeenAt.Format(time.RFC3339),
	}
}
