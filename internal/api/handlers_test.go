// internal/api/handlers_test.go
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	apperrors "challenge-verifier/internal/common/errors"
	"challenge-verifier/internal/common/logger"
	"challenge-verifier/internal/imaging"
	"challenge-verifier/internal/verification/category"
	"challenge-verifier/internal/verification/oracle"
	"challenge-verifier/internal/verification/oracle/oracletest"
	"challenge-verifier/internal/verification/preview"
	"challenge-verifier/internal/verification/prompts"
	"challenge-verifier/internal/verification/verify"
	"challenge-verifier/pkg/ruleset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// testImageLimits admits createTestPNG and little else.
var testImageLimits = imaging.Limits{MaxSide: 64, MaxPixels: 64 * 64}

func createTestServer(t *testing.T, o oracle.Oracle) *Server {
	t.Helper()
	rs := ruleset.Default()
	mapper := category.NewMapper(rs)
	log := logger.NewTestLogger(t)

	engine, err := verify.NewEngine(mapper, prompts.NewCatalog(rs), o, verify.DefaultPolicy(), nil, log)
	require.NoError(t, err)

	h := NewHandlers(engine, preview.NewService(mapper, log), o, testImageLimits, log)
	return NewServer(ServerOptions{MaxUploadBytes: 1 << 20}, h, log, nil)
}

func createTestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 30), uint8(y * 30), 90, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartRequest builds a /verify request. An empty contentType omits the
// image part entirely.
func multipartRequest(t *testing.T, title string, data []byte, contentType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if title != "" {
		require.NoError(t, w.WriteField("title", title))
	}
	if contentType != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="upload"`)
		hdr.Set("Content-Type", contentType)
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/verify", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorBody {
	t.Helper()
	var body apperrors.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func passingOracle() *oracletest.Fake {
	return &oracletest.Fake{
		Table:   map[string]float64{"a person exercising": 0.27},
		Default: 0.08,
	}
}

// ==========================
// /preview
// ==========================

func TestPreview_OK(t *testing.T) {
	fake := passingOracle()
	s := createTestServer(t, fake)

	req := httptest.NewRequest(http.MethodPost, "/preview", strings.NewReader(`{"title":"오늘 운동 완료"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res preview.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []ruleset.Tag{ruleset.Fitness}, res.Categories)
	assert.True(t, res.AutoVerifiable)
	assert.Equal(t, preview.ReasonAutoVerifiable, res.Reason)
	assert.Empty(t, fake.Calls())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestPreview_Generic(t *testing.T) {
	s := createTestServer(t, passingOracle())

	req := httptest.NewRequest(http.MethodPost, "/preview", strings.NewReader(`{"title":"제목없음날씨좋다"}`))
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res preview.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []ruleset.Tag{ruleset.Generic}, res.Categories)
	assert.False(t, res.AutoVerifiable)
	assert.Equal(t, preview.ReasonNotAutoVerifiable, res.Reason)
}

func TestPreview_InvalidBodies(t *testing.T) {
	s := createTestServer(t, passingOracle())

	for name, body := range map[string]string{
		"not json":      `title=운동`,
		"missing title": `{}`,
		"wrong type":    `{"title": 5}`,
		"blank title":   `{"title": "   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodPost, "/preview", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, decodeError(t, rec).Code)
		})
	}
}

// ==========================
// /verify
// ==========================

func TestVerify_OK(t *testing.T) {
	fake := passingOracle()
	s := createTestServer(t, fake)

	rec := serve(s, multipartRequest(t, "오늘 운동 완료", createTestPNG(t), "image/png"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PASS", body["passed"])
	assert.Equal(t, "a person exercising", body["bestPrompt"])
	assert.InDelta(t, 0.27, body["score"], 1e-9)
	assert.InDelta(t, 0.08, body["genericScore"], 1e-9)
	assert.InDelta(t, 0.20, body["threshold"], 1e-9)
	assert.InDelta(t, 0.18, body["reviewThreshold"], 1e-9)
	assert.InDelta(t, 0.04, body["margin"], 1e-9)
	assert.Len(t, body["promptScores"], 6)
	assert.Len(t, body["genericPromptScores"], 4)
	assert.Len(t, fake.Calls(), 2)
}

func TestVerify_PromptScoresKeepOrder(t *testing.T) {
	s := createTestServer(t, passingOracle())

	rec := serve(s, multipartRequest(t, "운동", createTestPNG(t), "image/png"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		PromptScores oracle.Scores `json:"promptScores"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.PromptScores)
	assert.Equal(t, "a person exercising", body.PromptScores[0].Prompt)
	assert.Equal(t, "sportswear in a gym", body.PromptScores[len(body.PromptScores)-1].Prompt)
}

func TestVerify_RejectsBadUploadsWithoutScoring(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		data        []byte
		contentType string
	}{
		{"text/plain upload", "운동", []byte("hello"), "text/plain"},
		{"image content type with garbage bytes", "운동", []byte("not really a png"), "image/png"},
		{"missing image", "운동", nil, ""},
		{"missing title", "", []byte("x"), "image/png"},
		{"blank title", "   ", []byte("x"), "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := passingOracle()
			s := createTestServer(t, fake)

			rec := serve(s, multipartRequest(t, tt.title, tt.data, tt.contentType))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, decodeError(t, rec).Code)
			assert.Empty(t, fake.Calls())
		})
	}
}

func TestVerify_RejectsOversizedImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 65, 1))))

	fake := passingOracle()
	s := createTestServer(t, fake)

	rec := serve(s, multipartRequest(t, "운동", buf.Bytes(), "image/png"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, body.Code)
	assert.Equal(t, "image too large", body.Detail)
	assert.Empty(t, fake.Calls())
}

func TestVerify_NotMultipart(t *testing.T) {
	s := createTestServer(t, passingOracle())
	req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(`{"title":"운동"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify_OracleFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   apperrors.ErrorCode
	}{
		{
			name:       "unavailable",
			err:        apperrors.NewOracleUnavailableError(errors.New("model not loaded")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperrors.ErrCodeOracleUnavailable,
		},
		{
			name:       "timeout",
			err:        apperrors.NewOracleTimeoutError(time.Second, errors.New("deadline")),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   apperrors.ErrCodeOracleTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestServer(t, &oracletest.Fake{Err: tt.err})
			rec := serve(s, multipartRequest(t, "운동", createTestPNG(t), "image/png"))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestVerify_PayloadTooLarge(t *testing.T) {
	s := createTestServer(t, passingOracle())
	big := bytes.Repeat([]byte{0xAB}, 2<<20)

	rec := serve(s, multipartRequest(t, "운동", big, "image/png"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, apperrors.ErrCodePayloadTooLarge, decodeError(t, rec).Code)
}

// ==========================
// /health, /ready, /metrics
// ==========================

func TestHealth_IndependentOfOracle(t *testing.T) {
	s := createTestServer(t, &oracletest.Fake{ReadyErr: errors.New("model loading")})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	ready := createTestServer(t, &oracletest.Fake{})
	rec := serve(ready, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready": true}`, rec.Body.String())

	notReady := createTestServer(t, &oracletest.Fake{ReadyErr: errors.New("model loading")})
	rec = serve(notReady, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"ready": false, "detail": "model loading"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := createTestServer(t, passingOracle())
	serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "verifier_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	s := createTestServer(t, passingOracle())
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.ErrCodeNotFound, decodeError(t, rec).Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := createTestServer(t, passingOracle())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")

	rec := serve(s, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
