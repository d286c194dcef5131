package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/session"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
	"github.com/anime-shed/plant-inspector-go/pkg/services"
)

const sessionKey = "session"

func (h *Handler) registerSessionRoutes(g *gin.RouterGroup) {
	g.POST("", h.createSession)

	s := g.Group("/:id", h.loadSession)
	s.GET("", h.getSession)
	s.DELETE("", h.closeSession)
	s.POST("/camera/start", h.startCamera)
	s.POST("/camera/stop", h.stopCamera)
	s.POST("/scan/start", h.startScan)
	s.POST("/scan/pause", h.pauseScan)
	s.POST("/scan/toggle", h.toggleScan)
	s.PUT("/settings", h.updateSettings)
	s.POST("/capture", h.capture)
	s.POST("/diagnose", h.diagnoseSession)
	s.GET("/stream", h.stream)
}

func (h *Handler) loadSession(c *gin.Context) {
	s, err := h.deps.Sessions.Get(c.Param("id"))
	if err != nil {
		fail(c, "scan session not found", err)
		return
	}
	c.Set(sessionKey, s)
	c.Next()
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func (h *Handler) createSession(c *gin.Context) {
	s, err := h.deps.Sessions.Create()
	if err != nil {
		fail(c, "failed to create scan session", err)
		return
	}
	if lang := c.Query("lang"); lang != "" {
		sched := s.Scheduler()
		_ = sched.SetOptions(sched.Options().WithLanguage(lang))
	}
	c.JSON(http.StatusCreated, s.Response())
}

func (h *Handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Response())
}

func (h *Handler) closeSession(c *gin.Context) {
	if err := h.deps.Sessions.Close(c.Param("id")); err != nil {
		fail(c, "failed to close scan session", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) startCamera(c *gin.Context) {
	s := currentSession(c)
	s.Touch()
	if err := s.Scheduler().StartCamera(c.Request.Context()); err != nil {
		fail(c, "failed to start camera", err)
		return
	}
	c.JSON(http.StatusOK, s.Response())
}

func (h *Handler) stopCamera(c *gin.Context) {
	s := currentSession(c)
	s.Touch()
	s.Scheduler().StopCamera()
	c.JSON(http.StatusOK, s.Response())
}

func (h *Handler) startScan(c *gin.Context) {
	s := currentSession(c)
	s.Touch()
	if err := s.Scheduler().StartScan(); err != nil {
		fail(c, "failed to start scan", err)
		return
	}
	c.JSON(http.StatusOK, s.Response())
}

func (h *Handler) pauseScan(c *gin.Context) {
	s := currentSession(c)
	s.Touch()
	s.Scheduler().PauseScan()
	c.JSON(http.StatusOK, s.Response())
}

func (h *Handler) toggleScan(c *gin.Context) {
	s := currentSession(c)
	s.Touch()
	if _, err := s.Scheduler().ToggleScan(); err != nil {
		fail(c, "failed to toggle scan", err)
		return
	}
	c.JSON(http.StatusOK, s.Response())
}

// updateSettings applies the non-nil fields of the request on top of the
// session's current analysis and overlay options
func (h *Handler) updateSettings(c *gin.Context) {
	s := currentSession(c)
	s.Touch()

	var req models.ScanSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "invalid settings", apperrors.NewValidationError("invalid request body", err))
		return
	}
	if req.Sensitivity != nil && (*req.Sensitivity < 0 || *req.Sensitivity > 100) {
		fail(c, "invalid settings", apperrors.NewValidationError("sensitivity must be within 0..100", nil))
		return
	}

	sched := s.Scheduler()
	opts := sched.Options()
	if req.Sensitivity != nil {
		opts = opts.Tune(*req.Sensitivity)
	}
	if req.Language != nil {
		opts = opts.WithLanguage(*req.Language)
	}
	if err := sched.SetOptions(opts); err != nil {
		fail(c, "invalid settings", err)
		return
	}

	render := sched.RenderOptions()
	if req.ShowBoundingBoxes != nil {
		render.ShowBoundingBoxes = *req.ShowBoundingBoxes
	}
	if req.ShowConfidence != nil {
		render.ShowConfidence = *req.ShowConfidence
	}
	if req.ColorCoding != nil {
		render.ColorCoding = *req.ColorCoding
	}
	sched.SetRenderOptions(render)

	c.JSON(http.StatusOK, gin.H{
		"sensitivity":         opts.Sensitivity,
		"profile":             string(opts.Profile),
		"language":            opts.Language,
		"show_bounding_boxes": render.ShowBoundingBoxes,
		"show_confidence":     render.ShowConfidence,
		"color_coding":        render.ColorCoding,
	})
}

// capture analyzes the latest frame once; with ?diagnose=true that same frame
// is also sent for AI diagnosis
func (h *Handler) capture(c *gin.Context) {
	s := currentSession(c)
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	snap, err := s.Capture(ctx)
	if err != nil {
		fail(c, "capture failed", err)
		return
	}
	bounds := snap.Frame.Image.Bounds()
	resp := models.ScanResponse{
		Timestamp:  snap.Frame.CapturedAt.UTC().Format(time.RFC3339),
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Detections: snap.Detections,
		Summary:    services.Summarize(snap.Detections, bounds.Size()),
	}

	if formBool(c.Query("diagnose")) {
		result, err := s.DiagnoseSnapshot(ctx, snap)
		if err != nil {
			resp.Warnings = append(resp.Warnings, apperrors.UserMessage(err, "diagnosis failed"))
		} else {
			resp.Diagnosis = result
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) diagnoseSession(c *gin.Context) {
	s := currentSession(c)
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	result, err := s.Diagnose(ctx)
	if err != nil {
		fail(c, "diagnosis failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
