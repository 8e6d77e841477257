package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "app_error",
			err:        apperrors.WithMessage(apperrors.ErrInvalidQuery, "q is too short"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_QUERY",
			wantMsg:    "q is too short",
		},
		{
			name:       "wrapped_app_error_hides_cause",
			err:        apperrors.Wrap(apperrors.ErrProviderUnreachable, errors.New("dial tcp 10.0.0.1:443")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "PROVIDER_UNREACHABLE",
			wantMsg:    apperrors.ErrProviderUnreachable.Message,
		},
		{
			name:       "unexpected_error",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantMsg:    apperrors.ErrInternalServer.Message,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler())
			r.GET("/fail", func(c *gin.Context) {
				_ = c.Error(tt.err)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", http.NoBody))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := parseBody(t, rec)
			if code, _ := body["code"].(string); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if msg, _ := body["error"].(string); msg != tt.wantMsg {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}
