package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/config"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
)

func setupAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID")})
	})
	return r
}

func doAuthRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func signClaims(t *testing.T, claims *JWTClaims, key []byte) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestAuthMiddleware(t *testing.T) {
	user := &models.User{Email: "ayse@example.com"}
	user.ID = "0190f5a2-3b4c-7d8e-9f00-112233445566"

	valid, err := GenerateAccessToken(user, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	key := []byte(config.Get().JWTSecret)

	expired := signClaims(t, &JWTClaims{
		UserID:    user.ID,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, key)
	refresh := signClaims(t, &JWTClaims{UserID: user.ID, TokenType: "refresh"}, key)
	subjectOnly := signClaims(t, &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
	}, key)
	wrongKey := signClaims(t, &JWTClaims{UserID: user.ID}, []byte("not-the-secret"))
	notAUserID := signClaims(t, &JWTClaims{UserID: "admin"}, key)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid_token", "Bearer " + valid, http.StatusOK},
		{"subject_only_token", "Bearer " + subjectOnly, http.StatusOK},
		{"missing_header", "", http.StatusUnauthorized},
		{"malformed_header", "Token " + valid, http.StatusUnauthorized},
		{"expired_token", "Bearer " + expired, http.StatusUnauthorized},
		{"refresh_token", "Bearer " + refresh, http.StatusUnauthorized},
		{"wrong_key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"non_uuid_subject", "Bearer " + notAUserID, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doAuthRequest(setupAuthRouter(), tt.header)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			body := parseBody(t, rec)
			if tt.wantStatus == http.StatusOK {
				if got, _ := body["user_id"].(string); got != user.ID {
					t.Errorf("user_id = %q, want %q", got, user.ID)
				}
				return
			}
			if code, _ := body["code"].(string); code != "UNAUTHORIZED" {
				t.Errorf("code = %q, want UNAUTHORIZED", code)
			}
		})
	}
}
