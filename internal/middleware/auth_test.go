package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(testSecret))
	r.GET("/me", func(c *gin.Context) {
		a := GetActor(c)
		c.String(http.StatusOK, "%s:%d:%s", a.Role(), a.ID(), RateKey(c))
	})
	r.GET("/teacher", RoleMiddleware(model.Teacher), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func token(t *testing.T, id uint, role model.UserRole) string {
	t.Helper()
	s, err := util.GenerateJWT(id, role, "", testSecret, time.Hour)
	require.NoError(t, err)
	return s
}

func do(r *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer "+token(t, 0, model.Student)).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer "+token(t, 5, model.System)).Code)

	w := do(r, "/me", "Bearer "+token(t, 5, model.Student))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student:5:u:5", w.Body.String())

	w = do(r, "/me?token="+token(t, 9, model.Teacher), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher:9:u:9", w.Body.String())
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusForbidden, do(r, "/teacher", "Bearer "+token(t, 5, model.Student)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/teacher", "Bearer "+token(t, 9, model.Teacher)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/teacher", "Bearer "+token(t, 1, model.Admin)).Code)
}

func TestGetActorWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	a := GetActor(c)
	assert.Zero(t, a.ID())
	assert.False(t, a.IsOwner(0))
	assert.False(t, a.IsAdmin())
}
