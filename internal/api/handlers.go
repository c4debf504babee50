// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	apperrors "challenge-verifier/internal/common/errors"
	"challenge-verifier/internal/common/logger"
	"challenge-verifier/internal/common/validation"
	"challenge-verifier/internal/imaging"
	"challenge-verifier/internal/verification/preview"
	"challenge-verifier/internal/verification/verify"

	"github.com/labstack/echo/v4"
)

const previewRequestSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"}
  },
  "required": ["title"]
}`

var previewSchema = validation.MustCompile(previewRequestSchema)

// Verifier produces a verdict for a title and an upright RGB image.
type Verifier interface {
	Verify(ctx context.Context, title string, img image.Image) (*verify.Verdict, error)
}

// Previewer maps a title to categories without scoring.
type Previewer interface {
	Preview(title string) (*preview.Result, error)
}

// ReadinessChecker reports whether the similarity backend can serve requests.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

type Handlers struct {
	verifier     Verifier
	previewer    Previewer
	readiness    ReadinessChecker
	imageLimits  imaging.Limits
	readyTimeout time.Duration
	logger       logger.Logger
}

func NewHandlers(verifier Verifier, previewer Previewer, readiness ReadinessChecker, limits imaging.Limits, log logger.Logger) *Handlers {
	return &Handlers{
		verifier:     verifier,
		previewer:    previewer,
		readiness:    readiness,
		imageLimits:  limits,
		readyTimeout: 2 * time.Second,
		logger:       log,
	}
}

type previewRequest struct {
	Title string `json:"title"`
}

// Preview handles POST /preview with a JSON body {"title": "..."}.
func (h *Handlers) Preview(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return asHTTPError(err)
	}

	result, err := previewSchema.ValidateJSON(body)
	if err != nil {
		return apperrors.NewInvalidInputError("request body must be JSON", err.Error())
	}
	if !result.Valid {
		return apperrors.NewInvalidInputError("invalid request body", result.Summary())
	}

	var req previewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.NewInvalidInputError("invalid request body", err.Error())
	}

	res, err := h.previewer.Preview(req.Title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Verify handles POST /verify with multipart fields "title" and "image".
// The upload is checked and decoded before any scoring happens.
func (h *Handlers) Verify(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return asHTTPError(err)
	}

	title := firstValue(form.Value["title"])
	if strings.TrimSpace(title) == "" {
		return apperrors.NewInvalidInputError("title is required", "missing form field: title")
	}
	files := form.File["image"]
	if len(files) == 0 {
		return apperrors.NewInvalidInputError("image is required", "missing form file: image")
	}
	fh := files[0]

	contentType := fh.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "image/") {
		return apperrors.NewInvalidInputError("uploaded file must be an image", "content type: "+contentType)
	}

	data, err := readUpload(fh)
	if err != nil {
		return asHTTPError(err)
	}

	img, err := imaging.Decode(data, h.imageLimits)
	if err != nil {
		return err
	}

	log := requestLog(c, h.logger)
	fingerprint, err := imaging.Fingerprint(img.RGBA)
	if err != nil {
		log.WithError(err).Warn("image fingerprint failed", nil)
	}

	verdict, err := h.verifier.Verify(c.Request().Context(), title, img.RGBA)
	if err != nil {
		return err
	}

	if verdict.Outcome != verify.Pass {
		log.Info("verification needs attention", map[string]interface{}{
			"outcome":     verdict.Outcome.String(),
			"fingerprint": fingerprint,
			"format":      img.Format,
			"orientation": img.Orientation,
			"width":       img.Width(),
			"height":      img.Height(),
		})
	}
	return c.JSON(http.StatusOK, verdict)
}

// Health is pure liveness and never consults the similarity backend.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// Ready reports whether the similarity backend can serve requests.
func (h *Handlers) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.readyTimeout)
	defer cancel()

	if err := h.readiness.Ready(ctx); err != nil {
		requestLog(c, h.logger).Warn("oracle not ready", map[string]interface{}{"error": err.Error()})
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"ready":  false,
			"detail": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ready": true})
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// asHTTPError keeps echo's body-limit error intact and turns other read
// failures into INVALID_INPUT.
func asHTTPError(err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return apperrors.NewInvalidInputError("malformed request", err.Error())
}
