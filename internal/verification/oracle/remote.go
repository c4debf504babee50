package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"time"

	commonhttp "challenge-verifier/internal/common/http"
)

type scoreRequest struct {
	Image   string   `json:"image"`
	Prompts []string `json:"prompts"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// Remote delegates scoring to an embedding sidecar over HTTP:
//
//	POST {baseURL}/score  {"image": "<base64 JPEG>", "prompts": [...]}
//	-> {"scores": [...]}  (same order as prompts)
//
// It is safe for concurrent use.
type Remote struct {
	baseURL string
	client  *commonhttp.Client
	quality int
}

// NewRemote creates a client for the sidecar at baseURL. The per-call deadline
// comes from the caller's context; httpTimeout is a transport backstop.
func NewRemote(baseURL string, httpTimeout time.Duration) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  commonhttp.NewClient(httpTimeout),
		quality: 90,
	}
}

func (r *Remote) Score(ctx context.Context, img image.Image, prompts []string) (Scores, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	req := scoreRequest{
		Image:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		Prompts: prompts,
	}
	var resp scoreResponse
	if err := r.client.PostJSON(ctx, r.baseURL+"/score", req, &resp); err != nil {
		return nil, fmt.Errorf("remote score: %w", err)
	}
	return NewScores(prompts, resp.Scores)
}

// Ready checks the sidecar's health endpoint.
func (r *Remote) Ready(ctx context.Context) error {
	if err := r.client.GetJSON(ctx, r.baseURL+"/health", nil); err != nil {
		return fmt.Errorf("remote oracle not ready: %w", err)
	}
	return nil
}
