package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func pipelineRequest(configuredKey string, headers map[string]string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(PipelineAuthMiddleware(configuredKey))
	r.POST("/pipeline/prices/sync", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": c.GetString("actor")})
	})

	req := httptest.NewRequest(http.MethodPost, "/pipeline/prices/sync", http.NoBody)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPipelineAuthMiddleware(t *testing.T) {
	const key = "cron-key"

	tests := []struct {
		name          string
		configuredKey string
		headers       map[string]string
		wantStatus    int
		wantCode      string
	}{
		{"api_key_header", key, map[string]string{"X-API-Key": key}, http.StatusOK, ""},
		{"bearer_header", key, map[string]string{"Authorization": "Bearer " + key}, http.StatusOK, ""},
		{"api_key_wins_over_bearer", key, map[string]string{"X-API-Key": "nope", "Authorization": "Bearer " + key}, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"wrong_key", key, map[string]string{"X-API-Key": "cron"}, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"basic_scheme", key, map[string]string{"Authorization": "Basic " + key}, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"no_header", key, nil, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"not_configured", "", map[string]string{"X-API-Key": key}, http.StatusServiceUnavailable, "PIPELINE_NOT_CONFIGURED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := pipelineRequest(tt.configuredKey, tt.headers)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			body := parseBody(t, rec)
			if tt.wantCode == "" {
				if actor, _ := body["actor"].(string); actor != "pipeline" {
					t.Errorf("actor = %q, want pipeline", actor)
				}
				return
			}
			if success, _ := body["success"].(bool); success {
				t.Error("expected success = false")
			}
			if code, _ := body["code"].(string); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}
