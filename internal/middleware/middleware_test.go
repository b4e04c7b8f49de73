package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet_shop/internal/cache"
	"wallet_shop/internal/models"
	"wallet_shop/internal/session"
	"wallet_shop/internal/store"
	"wallet_shop/internal/utils"
)

const testSecret = "middleware-test-secret"

type userMap map[uuid.UUID]*models.User

func (m userMap) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

type auditSink chan models.AuditLog

func (s auditSink) RecordAudit(_ context.Context, entry models.AuditLog) error {
	s <- entry
	return nil
}

func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.Init(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.Init(nil) })
	return mr
}

func newRouter(users userMap) *gin.Engine {
	gin.SetMode(gin.TestMode)
	sessions := session.NewManager("middleware-session-secret-32byte", false)
	r := gin.New()
	r.Use(Authenticate(users, sessions, testSecret))
	r.GET("/whoami", func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			c.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": u.Username})
	})
	r.GET("/private", LoginRequired(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/staff", RequireStaff(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func request(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateWithBearer(t *testing.T) {
	alice := &models.User{ID: uuid.New(), Username: "alice"}
	bob := &models.User{ID: uuid.New(), Username: "bob", IsStaff: true}
	r := newRouter(userMap{alice.ID: alice, bob.ID: bob})

	aliceToken, err := utils.GenerateJWT(*alice, testSecret)
	require.NoError(t, err)
	bobToken, err := utils.GenerateJWT(*bob, testSecret)
	require.NoError(t, err)

	assert.Contains(t, request(r, "/whoami", aliceToken).Body.String(), "alice")
	assert.Equal(t, http.StatusNoContent, request(r, "/private", aliceToken).Code)
	assert.Equal(t, http.StatusForbidden, request(r, "/staff", aliceToken).Code)
	assert.Equal(t, http.StatusNoContent, request(r, "/staff", bobToken).Code)

	assert.Equal(t, http.StatusUnauthorized, request(r, "/private", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "/staff", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "/whoami", "pas-un-jwt").Code)
}

func TestAuthenticateUnknownUserIsAnonymous(t *testing.T) {
	r := newRouter(userMap{})
	token, err := utils.GenerateJWT(models.User{ID: uuid.New(), Username: "ghost"}, testSecret)
	require.NoError(t, err)

	w := request(r, "/whoami", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":null}`, w.Body.String())
}

func TestAuthenticateRejectsRevokedToken(t *testing.T) {
	withRedis(t)
	alice := &models.User{ID: uuid.New(), Username: "alice"}
	r := newRouter(userMap{alice.ID: alice})

	token, err := utils.GenerateJWT(*alice, testSecret)
	require.NoError(t, err)
	claims, err := utils.ParseJWT(token, testSecret)
	require.NoError(t, err)
	require.NoError(t, cache.BlacklistToken(context.Background(), claims.ID, time.Hour))

	assert.Equal(t, http.StatusUnauthorized, request(r, "/whoami", token).Code)
}

func TestLoginRateLimitBlocksAfterFailures(t *testing.T) {
	withRedis(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", LoginRateLimit(), func(c *gin.Context) {
		if c.PostForm("password") == "ok" {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Identifiants invalides"})
	})

	login := func(password string) *httptest.ResponseRecorder {
		form := url.Values{"username": {"alice"}, "password": {password}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusSeeOther, login("ok").Code)
	for i := 0; i < LoginMaxAttempts; i++ {
		assert.Equal(t, http.StatusUnauthorized, login("bad").Code)
	}
	w := login("ok")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")
}

func TestPurchaseRateLimit(t *testing.T) {
	withRedis(t)
	gin.SetMode(gin.TestMode)
	alice := &models.User{ID: uuid.New(), Username: "alice"}
	r := gin.New()
	r.POST("/buy", func(c *gin.Context) { c.Set(userKey, alice) }, PurchaseRateLimit(), func(c *gin.Context) {
		c.Status(http.StatusSeeOther)
	})

	for i := 0; i < PurchaseMaxRequests; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/buy", nil))
		require.Equal(t, http.StatusSeeOther, w.Code)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/buy", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAuditCriticalActionsRecordsOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sink := make(auditSink, 2)
	staff := &models.User{ID: uuid.New(), Username: "bob", IsStaff: true}

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(userKey, staff) })
	r.POST("/returns/:id/approve", AuditCriticalActions(sink, models.ACTION_RETURN_APPROVE, models.RESOURCE_RETURN),
		func(c *gin.Context) {
			if c.Query("fail") != "" {
				SetAuditError(c, errors.New("introuvable"))
			}
			c.Redirect(http.StatusSeeOther, "/admin/returns")
		})

	id := uuid.NewString()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/returns/"+id+"/approve", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/returns/"+id+"/approve?fail=1", nil))

	entries := []models.AuditLog{}
	for len(entries) < 2 {
		select {
		case e := <-sink:
			entries = append(entries, e)
		case <-time.After(2 * time.Second):
			t.Fatal("entrée d'audit manquante")
		}
	}

	successes := 0
	for _, e := range entries {
		assert.Equal(t, id, e.ResourceID)
		assert.Equal(t, "bob", e.Username)
		if e.Success {
			successes++
		} else {
			assert.Equal(t, "introuvable", e.ErrorMsg)
		}
	}
	assert.Equal(t, 1, successes)
}
