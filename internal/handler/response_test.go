package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snapgram/internal/apperror"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", apperror.ValidationFailed("caption", "too long"), http.StatusBadRequest, "validation_error"},
		{"bad signature", apperror.AuthenticationFailed(), http.StatusBadRequest, "verification_failed"},
		{"conflict is a 400", apperror.Conflict("user", "x"), http.StatusBadRequest, "conflict"},
		{"unauthorized", apperror.Unauthorized("no session"), http.StatusUnauthorized, "unauthorized"},
		{"forbidden", apperror.Forbidden("not yours"), http.StatusForbidden, "forbidden"},
		{"not found", apperror.NotFound("post", "p1"), http.StatusNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("loading: %w", apperror.NotFound("post", "p1")), http.StatusNotFound, "not_found"},
		{"configuration", apperror.Configuration("X", "missing"), http.StatusInternalServerError, "internal_error"},
		{"plain error", errors.New("sqlite: disk I/O error at /var/lib/db"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Error)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "An internal error occurred", body.Message)
			}
		})
	}
}

func TestWriteError_IncludesField(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperror.ValidationFailed("imageUrl", "imageUrl is required"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "imageUrl", body.Field)
}

func TestDecodeJSON(t *testing.T) {
	type target struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"unknown field", `{"name":"x","admin":true}`, true},
		{"empty body", ``, true},
		{"malformed", `{"name":`, true},
		{"two objects", `{"name":"a"}{"name":"b"}`, true},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst target
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", dst.Name)
		})
	}
}

func TestCursorParam(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"?cursor=20", 20, false},
		{"?cursor=-1", 0, true},
		{"?cursor=ten", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := cursorParam(httptest.NewRequest(http.MethodGet, "/posts"+tt.query, nil))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
