// internal/common/errors/errors_test.go
package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.warns = append(l.warns, msg)
}

func TestStandardError_Unwrap(t *testing.T) {
	err := NewOracleTimeoutError(2*time.Second, context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "ORACLE_TIMEOUT")

	wrapped := fmt.Errorf("verify: %w", err)
	assert.True(t, HasCode(wrapped, ErrCodeOracleTimeout))
	assert.False(t, HasCode(wrapped, ErrCodeInvalidInput))
}

func TestNewConfigurationError(t *testing.T) {
	err := NewConfigurationError("policy", fmt.Errorf("review_threshold > pass_threshold"))
	assert.Equal(t, ErrCodeConfiguration, err.Code)
	assert.Equal(t, "policy: review_threshold > pass_threshold", err.Details)
	assert.False(t, err.Retryable)
}

func TestHTTPStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrCodeInvalidInput:      http.StatusBadRequest,
		ErrCodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
		ErrCodeNotFound:          http.StatusNotFound,
		ErrCodeOracleUnavailable: http.StatusServiceUnavailable,
		ErrCodeOracleTimeout:     http.StatusGatewayTimeout,
		ErrCodeConfiguration:     http.StatusInternalServerError,
		ErrCodeInternal:          http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, HTTPStatus(code), "code %s", code)
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "ORACLE", GetErrorCategory(ErrCodeOracleTimeout))
	assert.Equal(t, "ORACLE", GetErrorCategory(ErrCodeOracleUnavailable))
	assert.Equal(t, "CLIENT", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "CONFIGURATION", GetErrorCategory(ErrCodeConfiguration))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestErrorHandler_HandleHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
		wantDetail string
		wantLevel  string
	}{
		{
			name:       "invalid input",
			err:        NewInvalidInputError("invalid image", "unknown format"),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeInvalidInput,
			wantDetail: "invalid image",
			wantLevel:  "warn",
		},
		{
			name:       "wrapped oracle failure",
			err:        fmt.Errorf("score: %w", NewOracleUnavailableError(fmt.Errorf("oom"))),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodeOracleUnavailable,
			wantDetail: "Embedding similarity service unavailable",
			wantLevel:  "error",
		},
		{
			name:       "echo body limit",
			err:        echo.ErrStatusRequestEntityTooLarge,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   ErrCodePayloadTooLarge,
			wantDetail: http.StatusText(http.StatusRequestEntityTooLarge),
			wantLevel:  "warn",
		},
		{
			name:       "echo not found",
			err:        echo.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
			wantDetail: http.StatusText(http.StatusNotFound),
			wantLevel:  "warn",
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternal,
			wantDetail: "Unexpected error",
			wantLevel:  "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/verify", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			log := &recordingLogger{}
			var counted []ErrorCode
			h := NewErrorHandler(log, func(code ErrorCode, status int) {
				counted = append(counted, code)
			})

			h.HandleHTTPError(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantDetail, body.Detail)
			assert.Equal(t, []ErrorCode{tt.wantCode}, counted)

			if tt.wantLevel == "error" {
				assert.Len(t, log.errors, 1)
				assert.Empty(t, log.warns)
			} else {
				assert.Len(t, log.warns, 1)
				assert.Empty(t, log.errors)
			}
		})
	}
}
