package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type validatorFunc func(token string) (*models.JWTClaims, error)

func (f validatorFunc) ValidateToken(token string) (*models.JWTClaims, error) {
	return f(token)
}

func staticValidator(role models.UserRole, userID string) TokenValidator {
	return validatorFunc(func(token string) (*models.JWTClaims, error) {
		if token != "good" {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
		}
		return &models.JWTClaims{UserID: userID, Role: role}, nil
	})
}

func serve(r *gin.Engine, path, authorization string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWT(staticValidator(models.RoleTeacher, "t1")), func(c *gin.Context) {
		claims, _ := c.Get(ContextUserKey)
		c.String(http.StatusOK, claims.(*models.JWTClaims).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/me", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/me", "Token good"))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/me", "Bearer "))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/me", "Bearer nope"))
	assert.Equal(t, http.StatusOK, serve(r, "/me", "bearer good"))
}

func TestRBACSelf(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/teachers/:id", JWT(staticValidator(models.RoleTeacher, "t1")), RBAC(string(models.RoleAdmin), Self), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/admin", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, serve(r, "/teachers/t1", "Bearer good"))
	assert.Equal(t, http.StatusForbidden, serve(r, "/teachers/t2", "Bearer good"))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/admin", ""))
}

type observation struct {
	method string
	path   string
	status int
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (o *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observation{method: method, path: path, status: status})
}

func TestMetricsMiddlewareLabelsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/sections/:id/timetable", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, "/sections/s1/timetable", "")
	serve(r, "/sections/s2/timetable", "")
	serve(r, "/nowhere", "")

	require.Len(t, observer.seen, 3)
	assert.Equal(t, observation{http.MethodGet, "/sections/:id/timetable", http.StatusOK}, observer.seen[0])
	assert.Equal(t, "/sections/:id/timetable", observer.seen[1].path)
	assert.Equal(t, observation{http.MethodGet, "unmatched", http.StatusNotFound}, observer.seen[2])
}

func TestMetricsMiddlewareWithoutObserver(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(r, "/ok", ""))
}
