package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/config"
)

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret: "test-secret",
			TokenTTL:  time.Hour,
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(nil, nil, testConfig(), zap.NewNop(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var response healthResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ok" {
		t.Fatalf("expected status ok, got %q", response.Status)
	}
}

func TestAPIAuthRequired(t *testing.T) {
	server := NewServer(nil, nil, testConfig(), zap.NewNop(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}

	var response errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Error != "missing authorization" {
		t.Fatalf("expected missing authorization error, got %q", response.Error)
	}
}

func TestAPIRejectsMalformedToken(t *testing.T) {
	server := NewServer(nil, nil, testConfig(), zap.NewNop(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/approvals/pending", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}
}

func TestAPIRejectsTokenFromWrongKey(t *testing.T) {
	server := NewServer(nil, nil, testConfig(), zap.NewNop(), nil)

	otherConfig := testConfig()
	otherConfig.Auth.JWTSecret = "different-secret"
	other := NewServer(nil, nil, otherConfig, zap.NewNop(), nil)

	token, err := other.TokenManager().Generate("alice", nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/approvals/pending", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}
}

func TestBulkRejectsInvalidPostID(t *testing.T) {
	server := NewServer(nil, nil, testConfig(), zap.NewNop(), nil)

	token, err := server.TokenManager().Generate("reviewer", nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	body := `{"post_ids":["not-a-uuid"],"decision":"approve"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments/bulk", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}
