// internal/api/response/response_test.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/backlab/simcore/internal/core"
)

func TestJSON_Envelope(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusAccepted, map[string]string{"id": "run-1"})

	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var resp SuccessResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if resp.Data == nil {
		t.Error("expected data in response")
	}
	if resp.Meta.Timestamp.IsZero() {
		t.Error("expected timestamp in meta")
	}
}

func TestError_DomainError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusNotFound, core.ErrRunNotFound)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "RUN_NOT_FOUND" {
		t.Errorf("expected RUN_NOT_FOUND, got %s", resp.Error.Code)
	}
}

func TestError_WrappedCauseExposed(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest,
		core.WrapError(core.ErrConfigInvalid, errors.New("risk_per_trade out of range")))

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "CONFIG_INVALID" {
		t.Errorf("expected CONFIG_INVALID, got %s", resp.Error.Code)
	}
	if resp.Error.Cause != "risk_per_trade out of range" {
		t.Errorf("expected cause in detail, got %q", resp.Error.Cause)
	}
}

func TestError_PlainErrorStaysOpaque(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusInternalServerError, errors.New("dial tcp: connection refused"))

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("expected INTERNAL_ERROR, got %s", resp.Error.Code)
	}
	if resp.Error.Cause != "" {
		t.Errorf("plain error details must not leak, got %q", resp.Error.Cause)
	}
}
