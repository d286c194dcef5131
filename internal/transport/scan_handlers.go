package transport

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/service"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

// scanImage accepts either a JSON body with an image URL or a multipart form
// carrying the image file in the "image" field.
func (h *Handler) scanImage(c *gin.Context) {
	in, err := h.scanInput(c)
	if err != nil {
		fail(c, "invalid scan request", err)
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	resp, err := h.deps.Scans.ScanImage(ctx, in)
	if err != nil {
		fail(c, "scan failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) diagnoseImage(c *gin.Context) {
	in, err := h.scanInput(c)
	if err != nil {
		fail(c, "invalid diagnosis request", err)
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	result, err := h.deps.Scans.DiagnoseImage(ctx, in)
	if err != nil {
		fail(c, "diagnosis failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) scanInput(c *gin.Context) (service.ScanInput, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return h.multipartInput(c)
	}

	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return service.ScanInput{}, apperrors.NewValidationError("invalid request body", err)
	}
	lang := req.Language
	if lang == "" {
		lang = requestLanguage(c)
	}
	return service.ScanInput{
		URL:         req.URL,
		Preset:      req.Preset,
		Sensitivity: req.Sensitivity,
		Language:    lang,
		WithOverlay: req.WithOverlay,
		Diagnose:    req.Diagnose,
	}, nil
}

func (h *Handler) multipartInput(c *gin.Context) (service.ScanInput, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return service.ScanInput{}, apperrors.NewValidationError("image file is required", err)
	}
	if fh.Size > h.cfg.MaxImageSize {
		return service.ScanInput{}, apperrors.NewValidationError("image too large", nil).
			WithDetails(strconv.FormatInt(h.cfg.MaxImageSize, 10) + " bytes max")
	}
	f, err := fh.Open()
	if err != nil {
		return service.ScanInput{}, apperrors.NewValidationError("failed to read image", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.ScanInput{}, apperrors.NewValidationError("failed to read image", err)
	}

	in := service.ScanInput{
		Upload:      data,
		Preset:      c.PostForm("preset"),
		Language:    c.PostForm("language"),
		WithOverlay: formBool(c.PostForm("with_overlay")),
		Diagnose:    formBool(c.PostForm("diagnose")),
	}
	if in.Language == "" {
		in.Language = requestLanguage(c)
	}
	if raw := c.PostForm("sensitivity"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return service.ScanInput{}, apperrors.NewValidationError("sensitivity must be an integer", err)
		}
		in.Sensitivity = &v
	}
	return in, nil
}

func formBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
