package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
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
	"wallet_shop/internal/shop"
	"wallet_shop/internal/store/memory"
	"wallet_shop/internal/utils"
)

const jwtSecret = "routes-test-jwt-secret"

type sentNotice struct {
	To       string
	Notice   utils.ReturnNotice
	Approved bool
}

type env struct {
	router  *gin.Engine
	store   *memory.Store
	clock   *time.Time
	product models.Product
	sent    chan sentNotice
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	e := &env{store: memory.New(), clock: &now, sent: make(chan sentNotice, 4)}
	engine := shop.NewEngine(e.store,
		shop.ReturnPolicy{Window: 24 * time.Hour, RequireOwnership: true},
		shop.WithClock(func() time.Time { return *e.clock }),
	)

	e.product = models.Product{ID: uuid.New(), Name: "lampe", Price: 100, Stock: 5, CreatedAt: now}
	require.NoError(t, e.store.CreateProduct(context.Background(), &e.product))

	e.router = gin.New()
	RegisterRoutes(e.router, Deps{
		Engine:    engine,
		Store:     e.store,
		Sessions:  session.NewManager("routes-test-session-secret-32byt", false),
		JWTSecret: jwtSecret,
		Notifier: func(to string, notice utils.ReturnNotice, approved bool) error {
			e.sent <- sentNotice{To: to, Notice: notice, Approved: approved}
			return nil
		},
	})
	return e
}

func (e *env) createUser(t *testing.T, username, password string, money int64, staff bool) models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	u := models.User{
		ID:       uuid.New(),
		Username: username,
		Email:    username + "@example.com",
		Password: hash,
		Money:    money,
		IsStaff:  staff,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), &u))
	return u
}

func (e *env) stock(t *testing.T) int {
	p, err := e.store.GetProduct(context.Background(), e.product.ID)
	require.NoError(t, err)
	return p.Stock
}

func (e *env) money(t *testing.T, id uuid.UUID) int64 {
	u, err := e.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u.Money
}

// client garde les cookies entre les requêtes comme un navigateur
type client struct {
	env     *env
	cookies map[string]*http.Cookie
	bearer  string
}

func (e *env) client() *client {
	return &client{env: e, cookies: map[string]*http.Cookie{}}
}

func (cl *client) send(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}
	if cl.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+cl.bearer)
	}
	w := httptest.NewRecorder()
	cl.env.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(cl.cookies, c.Name)
			continue
		}
		cl.cookies[c.Name] = c
	}
	return w
}

func (cl *client) get(path string) *httptest.ResponseRecorder {
	return cl.send(httptest.NewRequest(http.MethodGet, path, nil))
}

func (cl *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return cl.send(req)
}

func (cl *client) login(t *testing.T, username, password string) {
	t.Helper()
	w := cl.post("/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type homeResponse struct {
	User     *models.User     `json:"user"`
	Products []models.Product `json:"products"`
	Notices  []session.Notice `json:"notices"`
}

type purchasesResponse struct {
	Purchases []models.PurchaseView `json:"purchases"`
	Notices   []session.Notice      `json:"notices"`
}

type returnsResponse struct {
	Returns []models.ReturnDetail `json:"returns"`
	Notices []session.Notice      `json:"notices"`
}

func TestRegisterPurchaseReturnApproveFlow(t *testing.T) {
	e := newEnv(t)
	staff := e.createUser(t, "bob", "staff-password", 0, true)

	alice := e.client()
	w := alice.post("/register", url.Values{
		"username":  {"alice"},
		"email":     {"alice@example.com"},
		"password1": {"correct-horse"},
		"password2": {"correct-horse"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/", w.Header().Get("Location"))

	home := decode[homeResponse](t, alice.get("/"))
	require.NotNil(t, home.User)
	assert.Equal(t, int64(10000), home.User.Money)
	require.Len(t, home.Notices, 1)
	assert.Equal(t, session.LevelSuccess, home.Notices[0].Level)
	require.Len(t, home.Products, 1)

	w = alice.post("/products/"+e.product.ID.String()+"/purchase", url.Values{"quantity": {"3"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, 2, e.stock(t))
	assert.Equal(t, int64(9700), e.money(t, home.User.ID))

	home = decode[homeResponse](t, alice.get("/"))
	require.Len(t, home.Notices, 1)
	assert.Equal(t, "Achat effectué !", home.Notices[0].Message)

	purchases := decode[purchasesResponse](t, alice.get("/purchases"))
	require.Len(t, purchases.Purchases, 1)
	purchase := purchases.Purchases[0]
	assert.True(t, purchase.Returnable)
	assert.Equal(t, "lampe", purchase.ProductName)

	w = alice.post("/purchases/"+purchase.ID.String()+"/return", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/purchases", w.Header().Get("Location"))

	purchases = decode[purchasesResponse](t, alice.get("/purchases"))
	require.Len(t, purchases.Purchases, 1)
	assert.True(t, purchases.Purchases[0].ReturnRequested)
	assert.False(t, purchases.Purchases[0].Returnable)
	// un retour en attente ne touche pas au solde
	assert.Equal(t, int64(9700), e.money(t, home.User.ID))

	admin := e.client()
	admin.login(t, "bob", "staff-password")

	returns := decode[returnsResponse](t, admin.get("/admin/returns"))
	require.Len(t, returns.Returns, 1)
	assert.Equal(t, int64(300), returns.Returns[0].RefundAmount)
	assert.Equal(t, "alice", returns.Returns[0].Username)

	w = admin.post("/admin/returns/"+returns.Returns[0].Return.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/returns", w.Header().Get("Location"))

	assert.Equal(t, 5, e.stock(t))
	assert.Equal(t, int64(10000), e.money(t, home.User.ID))
	purchases = decode[purchasesResponse](t, alice.get("/purchases"))
	assert.Empty(t, purchases.Purchases)

	returns = decode[returnsResponse](t, admin.get("/admin/returns"))
	assert.Empty(t, returns.Returns)
	require.Len(t, returns.Notices, 1)
	assert.Equal(t, "Retour accepté : +300 unités pour alice", returns.Notices[0].Message)

	select {
	case sent := <-e.sent:
		assert.Equal(t, "alice@example.com", sent.To)
		assert.True(t, sent.Approved)
		assert.Equal(t, int64(300), sent.Notice.Amount)
		assert.Equal(t, int64(10000), sent.Notice.Balance)
	case <-time.After(2 * time.Second):
		t.Fatal("aucun email de décision envoyé")
	}

	assert.Eventually(t, func() bool {
		logs, err := e.store.ListAuditLogs(context.Background(), 0)
		return err == nil && len(logs) == 1 &&
			logs[0].Action == models.ACTION_RETURN_APPROVE &&
			logs[0].Success && logs[0].UserID == staff.ID.String()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRejectKeepsPurchaseAndBalance(t *testing.T) {
	e := newEnv(t)
	buyer := e.createUser(t, "alice", "correct-horse", 300, false)
	e.createUser(t, "bob", "staff-password", 0, true)

	alice := e.client()
	alice.login(t, "alice", "correct-horse")
	alice.post("/products/"+e.product.ID.String()+"/purchase", url.Values{"quantity": {"2"}})
	purchases := decode[purchasesResponse](t, alice.get("/purchases"))
	require.Len(t, purchases.Purchases, 1)
	alice.post("/purchases/"+purchases.Purchases[0].ID.String()+"/return", nil)

	admin := e.client()
	admin.login(t, "bob", "staff-password")
	returns := decode[returnsResponse](t, admin.get("/admin/returns"))
	require.Len(t, returns.Returns, 1)
	returnID := returns.Returns[0].Return.ID.String()

	w := admin.post("/admin/returns/"+returnID+"/reject", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	assert.Equal(t, 3, e.stock(t))
	assert.Equal(t, int64(100), e.money(t, buyer.ID))
	purchases = decode[purchasesResponse](t, alice.get("/purchases"))
	require.Len(t, purchases.Purchases, 1)
	assert.False(t, purchases.Purchases[0].ReturnRequested)

	select {
	case sent := <-e.sent:
		assert.False(t, sent.Approved)
		assert.Equal(t, "lampe", sent.Notice.ProductName)
	case <-time.After(2 * time.Second):
		t.Fatal("aucun email de décision envoyé")
	}

	returns = decode[returnsResponse](t, admin.get("/admin/returns"))
	assert.Empty(t, returns.Returns)
	require.Len(t, returns.Notices, 1)
	assert.Equal(t, "Retour refusé pour alice", returns.Notices[0].Message)

	// une demande déjà traitée n'existe plus
	w = admin.post("/admin/returns/"+returnID+"/approve", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	returns = decode[returnsResponse](t, admin.get("/admin/returns"))
	require.Len(t, returns.Notices, 1)
	assert.Equal(t, session.LevelError, returns.Notices[0].Level)
	assert.Equal(t, 3, e.stock(t))
}

func TestPurchaseRefusalRedirectsWithNotices(t *testing.T) {
	e := newEnv(t)
	buyer := e.createUser(t, "alice", "correct-horse", 300, false)

	alice := e.client()
	alice.login(t, "alice", "correct-horse")

	w := alice.post("/products/"+e.product.ID.String()+"/purchase", url.Values{"quantity": {"10"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	home := decode[homeResponse](t, alice.get("/"))
	require.Len(t, home.Notices, 2)
	assert.Equal(t, "quantity", home.Notices[0].Field)
	assert.Equal(t, "", home.Notices[1].Field)
	assert.Equal(t, 5, e.stock(t))
	assert.Equal(t, int64(300), e.money(t, buyer.ID))

	alice.post("/products/"+e.product.ID.String()+"/purchase", url.Values{"quantity": {"abc"}})
	home = decode[homeResponse](t, alice.get("/"))
	require.Len(t, home.Notices, 1)
	assert.Equal(t, "quantity", home.Notices[0].Field)

	alice.post("/products/"+uuid.NewString()+"/purchase", url.Values{"quantity": {"1"}})
	home = decode[homeResponse](t, alice.get("/"))
	require.Len(t, home.Notices, 1)
	assert.Equal(t, "Le produit n'existe pas", home.Notices[0].Message)

	// notices consommées
	home = decode[homeResponse](t, alice.get("/"))
	assert.Empty(t, home.Notices)
}

func TestExpiredReturnRedirectsHome(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "alice", "correct-horse", 300, false)

	alice := e.client()
	alice.login(t, "alice", "correct-horse")
	alice.post("/products/"+e.product.ID.String()+"/purchase", url.Values{"quantity": {"1"}})
	purchases := decode[purchasesResponse](t, alice.get("/purchases"))
	require.Len(t, purchases.Purchases, 1)

	*e.clock = e.clock.Add(25 * time.Hour)

	w := alice.post("/purchases/"+purchases.Purchases[0].ID.String()+"/return", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	home := decode[homeResponse](t, alice.get("/"))
	require.Len(t, home.Notices, 1)
	assert.Equal(t, session.LevelInfo, home.Notices[0].Level)
	assert.Equal(t, "Le délai de retour a expiré", home.Notices[0].Message)

	returns, err := e.store.ListReturns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, returns)
}

func TestPurchasesAreScopedToOwner(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "alice", "correct-horse", 300, false)
	e.createUser(t, "mallory", "mallory-pass", 300, false)

	alice := e.client()
	alice.login(t, "alice", "correct-horse")
	alice.post("/products/"+e.product.ID.String()+"/purchase", url.Values{"quantity": {"1"}})
	own := decode[purchasesResponse](t, alice.get("/purchases"))
	require.Len(t, own.Purchases, 1)

	mallory := e.client()
	mallory.login(t, "mallory", "mallory-pass")
	other := decode[purchasesResponse](t, mallory.get("/purchases"))
	assert.Empty(t, other.Purchases)

	w := mallory.post("/purchases/"+own.Purchases[0].ID.String()+"/return", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	returns, err := e.store.ListReturns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, returns)
}

func TestAccessControl(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "alice", "correct-horse", 300, false)

	anon := e.client()
	assert.Equal(t, http.StatusOK, anon.get("/").Code)
	assert.Equal(t, http.StatusUnauthorized, anon.post("/products/"+e.product.ID.String()+"/purchase", url.Values{"quantity": {"1"}}).Code)
	assert.Equal(t, http.StatusUnauthorized, anon.get("/purchases").Code)
	assert.Equal(t, http.StatusUnauthorized, anon.get("/admin/returns").Code)

	alice := e.client()
	alice.login(t, "alice", "correct-horse")
	assert.Equal(t, http.StatusForbidden, alice.get("/admin/returns").Code)
	assert.Equal(t, http.StatusForbidden, alice.post("/admin/products", url.Values{"name": {"x"}, "price": {"1"}, "stock": {"1"}}).Code)

	products, err := e.store.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestLoginAndRegisterErrors(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "alice", "correct-horse", 300, false)

	cl := e.client()
	w := cl.post("/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "incorrect")

	w = cl.post("/register", url.Values{"username": {"alice"}, "password1": {"correct-horse"}, "password2": {"correct-horse"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"username"`)

	w = cl.post("/register", url.Values{"username": {"carol"}, "password1": {"correct-horse"}, "password2": {"other-horse"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"password2"`)

	_, err := e.store.GetUserByUsername(context.Background(), "carol")
	assert.Error(t, err)
}

func TestLogoutEndsSession(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "alice", "correct-horse", 300, false)

	alice := e.client()
	alice.login(t, "alice", "correct-horse")
	assert.Equal(t, http.StatusOK, alice.get("/purchases").Code)

	w := alice.post("/logout", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, http.StatusUnauthorized, alice.get("/purchases").Code)
}

func TestBearerTokenAndRevocation(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.Init(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.Init(nil) })

	e := newEnv(t)
	e.createUser(t, "alice", "correct-horse", 300, false)

	cl := e.client()
	body, _ := json.Marshal(gin.H{"username": "alice", "password": "correct-horse"})
	req := httptest.NewRequest(http.MethodPost, "/api/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := cl.send(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tok := decode[struct {
		Token string `json:"token"`
	}](t, w)
	require.NotEmpty(t, tok.Token)

	cl.bearer = tok.Token
	assert.Equal(t, http.StatusOK, cl.get("/purchases").Code)

	w = cl.post("/logout", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = cl.get("/purchases")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "révoqué")
}

func TestStaffProductManagement(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "bob", "staff-password", 0, true)

	admin := e.client()
	admin.login(t, "bob", "staff-password")

	w := admin.post("/admin/products", url.Values{"name": {"table"}, "description": {"chêne"}, "price": {"50"}, "stock": {"2"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/products", w.Header().Get("Location"))

	list := decode[struct {
		Products []models.Product `json:"products"`
		Notices  []session.Notice `json:"notices"`
	}](t, admin.get("/admin/products"))
	require.Len(t, list.Products, 2)
	require.Len(t, list.Notices, 1)
	assert.Equal(t, session.LevelSuccess, list.Notices[0].Level)

	var table models.Product
	for _, p := range list.Products {
		if p.Name == "table" {
			table = p
		}
	}
	require.NotEqual(t, uuid.Nil, table.ID)

	w = admin.post("/admin/products/"+table.ID.String(), url.Values{"name": {"table"}, "price": {"60"}, "stock": {"7"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/products", w.Header().Get("Location"))

	detail := decode[struct {
		Product   models.Product         `json:"product"`
		Movements []models.StockMovement `json:"movements"`
	}](t, admin.get("/admin/products/"+table.ID.String()))
	assert.Equal(t, int64(60), detail.Product.Price)
	assert.Equal(t, 7, detail.Product.Stock)
	require.Len(t, detail.Movements, 1)
	assert.Equal(t, models.MovementAdjustment, detail.Movements[0].Type)
	assert.Equal(t, 5, detail.Movements[0].Quantity)

	w = admin.post("/admin/products/"+table.ID.String(), url.Values{"name": {""}, "price": {"x"}, "stock": {"1"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/products/"+table.ID.String(), w.Header().Get("Location"))
	detail2 := decode[struct {
		Product models.Product   `json:"product"`
		Notices []session.Notice `json:"notices"`
	}](t, admin.get("/admin/products/"+table.ID.String()))
	require.Len(t, detail2.Notices, 1)
	assert.Equal(t, "price", detail2.Notices[0].Field)
	assert.Equal(t, int64(60), detail2.Product.Price)

	assert.Equal(t, http.StatusNotFound, admin.get("/admin/products/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusServiceUnavailable, admin.post("/admin/products/"+table.ID.String()+"/image", nil).Code)

	assert.Eventually(t, func() bool {
		logs, err := e.store.ListAuditLogs(context.Background(), 0)
		if err != nil || len(logs) != 4 {
			return false
		}
		failed := 0
		for _, l := range logs {
			if !l.Success {
				failed++
			}
		}
		return failed == 2
	}, 2*time.Second, 10*time.Millisecond)

	audit := decode[struct {
		Logs  []models.AuditLog `json:"logs"`
		Total int               `json:"total"`
	}](t, admin.get("/admin/audit?action="+models.ACTION_PRODUCT_CREATE))
	require.Equal(t, 1, audit.Total)
	assert.True(t, audit.Logs[0].Success)
	assert.Equal(t, "bob", audit.Logs[0].Username)
	assert.NotEmpty(t, audit.Logs[0].ResourceID)

	assert.Equal(t, http.StatusBadRequest, admin.get("/admin/audit?success=peut-etre").Code)
}

func TestConcurrentPurchasesOverHTTP(t *testing.T) {
	e := newEnv(t)

	const buyers = 8
	clients := make([]*client, buyers)
	for i := range clients {
		name := "buyer" + uuid.NewString()[:8]
		e.createUser(t, name, "correct-horse", 1000, false)
		clients[i] = e.client()
		clients[i].login(t, name, "correct-horse")
	}

	var wg sync.WaitGroup
	for _, cl := range clients {
		wg.Add(1)
		go func(cl *client) {
			defer wg.Done()
			cl.post("/products/"+e.product.ID.String()+"/purchase", url.Values{"quantity": {"1"}})
		}(cl)
	}
	wg.Wait()

	assert.Equal(t, 0, e.stock(t))
	total := 0
	for _, cl := range clients {
		total += len(decode[purchasesResponse](t, cl.get("/purchases")).Purchases)
	}
	assert.Equal(t, 5, total)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	cl := e.client()

	w := cl.get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, cl.get("/metrics").Code)
}
