package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"teacher_connect_backend/internal/config"
	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(cfg *config.Config, roles ...model.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(cfg), RoleMiddleware(roles...), func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).UserID)
	})
	return r
}

func token(t *testing.T, cfg *config.Config, role model.UserRole) string {
	user := &model.User{Role: role, Email: "u@example.com"}
	user.ID = 3
	tok, err := util.GenerateJWT(user, cfg.JWT.Secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}
	r := newRouter(cfg, model.Teacher)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{name: "no token", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "student forbidden", header: "Bearer " + token(t, cfg, model.Student), want: http.StatusForbidden},
		{name: "teacher allowed", header: "Bearer " + token(t, cfg, model.Teacher), want: http.StatusOK},
		{name: "admin allowed", header: "Bearer " + token(t, cfg, model.Admin), want: http.StatusOK},
		{name: "query token", query: "?token=" + token(t, cfg, model.Teacher), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
