package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/partsmarket/internal/config"
	"github.com/example/partsmarket/internal/database"
	"github.com/example/partsmarket/internal/handlers"
	"github.com/example/partsmarket/internal/models"
	"github.com/example/partsmarket/internal/repository"
	"github.com/example/partsmarket/internal/routes"
	"github.com/example/partsmarket/internal/services"
	"github.com/example/partsmarket/internal/storage"
	"github.com/example/partsmarket/internal/utils"
)

const testSecret = "market-secret"

type recordedMessage struct {
	to, body string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []recordedMessage
	err  error
}

func (m *fakeMessenger) Send(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, recordedMessage{to: to, body: body})
	return m.err
}

type market struct {
	app       *fiber.App
	db        *gorm.DB
	messenger *fakeMessenger
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newMarket(t *testing.T) *market {
	t.Helper()

	db := newTestDB(t)
	uploads := t.TempDir()
	cfg := &config.Config{
		JWTSecret:       testSecret,
		TokenExpires:    time.Hour,
		RefreshExpires:  24 * time.Hour,
		StorageProvider: "local",
		UploadDir:       uploads,
	}
	store, err := storage.NewLocalProvider(uploads, "http://localhost:8080", "/uploads")
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}

	users := repository.NewGormUserRepository(db)
	creds := services.BcryptCredentials{Cost: bcrypt.MinCost}
	messenger := &fakeMessenger{}

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	routes.Register(app, routes.Deps{
		DB:       db,
		Config:   cfg,
		Accounts: services.NewAccountService(users, creds),
		Resets:   services.NewPasswordResetService(users, creds, nil, nil, services.ResetChannels{}),
		Storage:  store,
		Telegram: services.NewTelegramService("", ""),
		WhatsApp: messenger,
	})

	return &market{app: app, db: db, messenger: messenger}
}

type result struct {
	status int
	raw    []byte
	body   map[string]interface{}
}

func (r result) data() map[string]interface{} {
	data, _ := r.body["data"].(map[string]interface{})
	return data
}

func (m *market) send(t *testing.T, req *http.Request, token string) result {
	t.Helper()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := m.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := result{status: resp.StatusCode, raw: raw}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func (m *market) do(t *testing.T, method, path, token string, payload interface{}) result {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return m.send(t, req, token)
}

func (m *market) user(t *testing.T, phone, userType string) (*models.User, string) {
	t.Helper()

	u := &models.User{Phone: phone, FirstName: "Nimal", LastName: "Perera", UserType: userType, IsActive: true}
	if err := m.db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := utils.GenerateToken(testSecret, u.ID, userType, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return u, token
}

func (m *market) request(t *testing.T, owner *models.User, status string) *models.VehiclePartRequest {
	t.Helper()

	r := &models.VehiclePartRequest{
		UserID:       owner.ID,
		VehicleType:  "car",
		VehicleModel: "Toyota Axio",
		VehicleYear:  2016,
		PartName:     "Side mirror",
		Status:       status,
	}
	if err := m.db.Create(r).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}
	return r
}

func (m *market) product(t *testing.T, request *models.VehiclePartRequest, price float64) *models.Product {
	t.Helper()

	p := &models.Product{RequestID: request.ID, Name: request.PartName, Price: price}
	if err := m.db.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func (m *market) cart(t *testing.T) string {
	t.Helper()

	resp := m.do(t, http.MethodPost, "/api/carts", "", nil)
	if resp.status != fiber.StatusCreated {
		t.Fatalf("create cart status = %d body = %s", resp.status, resp.raw)
	}
	return resp.data()["id"].(string)
}

func (m *market) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var n int64
	if err := m.db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestAddCartItemTwiceIncrementsQuantity(t *testing.T) {
	m := newMarket(t)
	owner, _ := m.user(t, "+94771234567", models.UserTypeUser)
	product := m.product(t, m.request(t, owner, models.RequestStatusCompleted), 1500)
	cartID := m.cart(t)

	first := m.do(t, http.MethodPost, "/api/cart-items", "", fiber.Map{"cart_id": cartID, "product_id": product.ID, "quantity": 2})
	if first.status != fiber.StatusCreated {
		t.Fatalf("first add status = %d body = %s", first.status, first.raw)
	}
	second := m.do(t, http.MethodPost, "/api/cart-items", "", fiber.Map{"cart_id": cartID, "product_id": product.ID})
	if second.status != fiber.StatusCreated {
		t.Fatalf("second add status = %d body = %s", second.status, second.raw)
	}
	if got := second.data()["quantity"]; got != float64(3) {
		t.Fatalf("quantity after second add = %v, want 3", got)
	}
	if second.data()["id"] != first.data()["id"] {
		t.Fatalf("second add returned a different line: %v vs %v", second.data()["id"], first.data()["id"])
	}

	cart := m.do(t, http.MethodGet, "/api/carts/"+cartID, "", nil)
	data := cart.data()
	items, _ := data["items"].([]interface{})
	if cart.status != fiber.StatusOK || len(items) != 1 {
		t.Fatalf("cart status = %d body = %s", cart.status, cart.raw)
	}
	if data["item_count"] != float64(3) || data["total"] != float64(4500) {
		t.Fatalf("item_count = %v total = %v", data["item_count"], data["total"])
	}
	if n := m.count(t, &models.CartItem{}, "cart_id = ?", cartID); n != 1 {
		t.Fatalf("stored lines = %d, want 1", n)
	}
}

func TestCartItemErrors(t *testing.T) {
	m := newMarket(t)
	cartID := m.cart(t)

	cases := []struct {
		name    string
		method  string
		path    string
		payload fiber.Map
		status  int
	}{
		{"unknown product", http.MethodPost, "/api/cart-items", fiber.Map{"cart_id": cartID, "product_id": uuid.NewString()}, fiber.StatusNotFound},
		{"unknown cart", http.MethodPost, "/api/cart-items", fiber.Map{"cart_id": uuid.NewString(), "product_id": uuid.NewString()}, fiber.StatusNotFound},
		{"bad cart id", http.MethodPost, "/api/cart-items", fiber.Map{"cart_id": "nope", "product_id": uuid.NewString()}, fiber.StatusBadRequest},
		{"zero quantity", http.MethodPut, "/api/cart-items/" + uuid.NewString(), fiber.Map{"quantity": 0}, fiber.StatusBadRequest},
		{"missing line", http.MethodDelete, "/api/cart-items/" + uuid.NewString(), nil, fiber.StatusNotFound},
		{"missing cart", http.MethodGet, "/api/carts/" + uuid.NewString(), nil, fiber.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if resp := m.do(t, tc.method, tc.path, "", tc.payload); resp.status != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", resp.status, tc.status, resp.raw)
			}
		})
	}
}

func shippingAddress() fiber.Map {
	return fiber.Map{
		"first_name": "Nimal",
		"last_name":  "Perera",
		"country":    "Sri Lanka",
		"state":      "Western",
		"post_code":  "10100",
		"city":       "Colombo",
		"address1":   "12 Galle Road",
	}
}

func TestCheckoutSnapshotsPrices(t *testing.T) {
	m := newMarket(t)
	owner, _ := m.user(t, "+94771234567", models.UserTypeUser)
	mirror := m.product(t, m.request(t, owner, models.RequestStatusCompleted), 1500)
	bulb := m.product(t, m.request(t, owner, models.RequestStatusCompleted), 250.5)
	cartID := m.cart(t)

	m.do(t, http.MethodPost, "/api/cart-items", "", fiber.Map{"cart_id": cartID, "product_id": mirror.ID, "quantity": 2})
	m.do(t, http.MethodPost, "/api/cart-items", "", fiber.Map{"cart_id": cartID, "product_id": bulb.ID})

	resp := m.do(t, http.MethodPost, "/api/orders", "", fiber.Map{
		"cart_id":          cartID,
		"shipping_address": shippingAddress(),
		"source":           models.OrderSourceWeb,
	})
	if resp.status != fiber.StatusCreated {
		t.Fatalf("checkout status = %d body = %s", resp.status, resp.raw)
	}
	order := resp.data()
	if order["total"] != 3250.5 || order["currency"] != models.DefaultCurrency || order["status"] != models.OrderStatusPending {
		t.Fatalf("order = %v", order)
	}
	if ref, _ := order["reference_number"].(string); !strings.HasPrefix(ref, "ORD-") || len(ref) != 16 {
		t.Fatalf("reference = %v", order["reference_number"])
	}

	if err := m.db.Model(mirror).Update("price", 9999).Error; err != nil {
		t.Fatalf("reprice: %v", err)
	}

	got := m.do(t, http.MethodGet, "/api/orders/"+order["id"].(string), "", nil)
	if got.status != fiber.StatusOK {
		t.Fatalf("get order status = %d body = %s", got.status, got.raw)
	}
	stored := got.data()
	if stored["total"] != 3250.5 {
		t.Fatalf("stored total = %v", stored["total"])
	}
	items, _ := stored["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("items = %v", stored["items"])
	}
	for _, raw := range items {
		item := raw.(map[string]interface{})
		if item["product_id"] == mirror.ID.String() && item["price"] != float64(1500) {
			t.Fatalf("mirror line price = %v, want the checkout price 1500", item["price"])
		}
	}
	if addr, _ := stored["shipping_address"].(map[string]interface{}); addr["city"] != "Colombo" {
		t.Fatalf("shipping address = %v", stored["shipping_address"])
	}

	if cart := m.do(t, http.MethodGet, "/api/carts/"+cartID, "", nil); cart.status != fiber.StatusOK {
		t.Fatalf("cart after checkout status = %d", cart.status)
	}
}

func TestCheckoutErrors(t *testing.T) {
	m := newMarket(t)
	emptyCart := m.cart(t)

	empty := m.do(t, http.MethodPost, "/api/orders", "", fiber.Map{
		"cart_id": emptyCart, "shipping_address": shippingAddress(), "source": "web",
	})
	if empty.status != fiber.StatusBadRequest || empty.body["message"] != "cart is empty" {
		t.Fatalf("empty cart status = %d body = %s", empty.status, empty.raw)
	}

	missing := m.do(t, http.MethodPost, "/api/orders", "", fiber.Map{
		"cart_id": uuid.NewString(), "shipping_address": shippingAddress(), "source": "web",
	})
	if missing.status != fiber.StatusNotFound {
		t.Fatalf("unknown cart status = %d body = %s", missing.status, missing.raw)
	}

	badSource := m.do(t, http.MethodPost, "/api/orders", "", fiber.Map{
		"cart_id": emptyCart, "shipping_address": shippingAddress(), "source": "fax",
	})
	if badSource.status != fiber.StatusBadRequest {
		t.Fatalf("bad source status = %d", badSource.status)
	}

	if n := m.count(t, &models.Order{}, "1 = 1"); n != 0 {
		t.Fatalf("orders stored = %d, want 0", n)
	}
	if n := m.count(t, &models.Address{}, "1 = 1"); n != 0 {
		t.Fatalf("addresses stored = %d, want 0", n)
	}
}

func TestCreateProductCompletesRequest(t *testing.T) {
	m := newMarket(t)
	_, userToken := m.user(t, "+94771234567", models.UserTypeUser)
	_, otherToken := m.user(t, "+94712345678", models.UserTypeUser)
	_, adminToken := m.user(t, "+94701234567", models.UserTypeAdmin)

	created := m.do(t, http.MethodPost, "/api/vehicle-part-requests", userToken, fiber.Map{
		"vehicle_type":  "car",
		"vehicle_model": "Toyota Axio",
		"vehicle_year":  2016,
		"part_name":     "Side mirror",
	})
	if created.status != fiber.StatusCreated || created.data()["status"] != models.RequestStatusPending {
		t.Fatalf("create request status = %d body = %s", created.status, created.raw)
	}
	requestID := created.data()["id"].(string)

	offer := fiber.Map{"request_id": requestID, "name": "Side mirror (used)", "price": 4500}
	if resp := m.do(t, http.MethodPost, "/api/products", userToken, offer); resp.status != fiber.StatusForbidden {
		t.Fatalf("non-admin create status = %d", resp.status)
	}
	if resp := m.do(t, http.MethodPost, "/api/products", adminToken, fiber.Map{"request_id": requestID, "name": "x", "price": 0}); resp.status != fiber.StatusBadRequest {
		t.Fatalf("zero price status = %d", resp.status)
	}
	if resp := m.do(t, http.MethodPost, "/api/products", adminToken, fiber.Map{"request_id": uuid.NewString(), "name": "x", "price": 10}); resp.status != fiber.StatusNotFound {
		t.Fatalf("unknown request status = %d", resp.status)
	}

	resp := m.do(t, http.MethodPost, "/api/products", adminToken, offer)
	if resp.status != fiber.StatusCreated {
		t.Fatalf("create product status = %d body = %s", resp.status, resp.raw)
	}

	request := m.do(t, http.MethodGet, "/api/vehicle-part-requests/"+requestID, userToken, nil)
	products, _ := request.data()["products"].([]interface{})
	if request.data()["status"] != models.RequestStatusCompleted || len(products) != 1 {
		t.Fatalf("request after offer = %s", request.raw)
	}

	mine := m.do(t, http.MethodGet, "/api/products", userToken, nil)
	if list, _ := mine.body["data"].([]interface{}); len(list) != 1 {
		t.Fatalf("owner products = %s", mine.raw)
	}
	theirs := m.do(t, http.MethodGet, "/api/products", otherToken, nil)
	if list, _ := theirs.body["data"].([]interface{}); len(list) != 0 {
		t.Fatalf("other user sees products: %s", theirs.raw)
	}
	productID := resp.data()["id"].(string)
	if got := m.do(t, http.MethodGet, "/api/products/"+productID, otherToken, nil); got.status != fiber.StatusNotFound {
		t.Fatalf("other user get product status = %d", got.status)
	}
}

func TestCreateProductKeepsCancelledRequest(t *testing.T) {
	m := newMarket(t)
	owner, _ := m.user(t, "+94771234567", models.UserTypeUser)
	_, adminToken := m.user(t, "+94701234567", models.UserTypeAdmin)
	request := m.request(t, owner, models.RequestStatusCancelled)

	resp := m.do(t, http.MethodPost, "/api/products", adminToken, fiber.Map{"request_id": request.ID, "name": "Mirror", "price": 100})
	if resp.status != fiber.StatusCreated {
		t.Fatalf("status = %d body = %s", resp.status, resp.raw)
	}

	var stored models.VehiclePartRequest
	if err := m.db.First(&stored, "id = ?", request.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != models.RequestStatusCancelled {
		t.Fatalf("status = %q, want cancelled", stored.Status)
	}
}

func TestAssignRequestToShop(t *testing.T) {
	m := newMarket(t)
	owner, userToken := m.user(t, "+94771234567", models.UserTypeUser)
	_, adminToken := m.user(t, "+94701234567", models.UserTypeAdmin)
	request := m.request(t, owner, models.RequestStatusPending)

	if resp := m.do(t, http.MethodPost, "/api/shops", userToken, fiber.Map{"name": "Lanka Auto", "phone_number": "0112345678"}); resp.status != fiber.StatusForbidden {
		t.Fatalf("non-admin create shop status = %d", resp.status)
	}

	shop := m.do(t, http.MethodPost, "/api/shops", adminToken, fiber.Map{"name": "Lanka Auto", "phone_number": "011 234 5678"})
	if shop.status != fiber.StatusCreated || shop.data()["phone_number"] != "+94112345678" {
		t.Fatalf("create shop status = %d body = %s", shop.status, shop.raw)
	}
	path := "/api/shops/" + shop.data()["id"].(string) + "/requests"

	assigned := m.do(t, http.MethodPost, path, adminToken, fiber.Map{"request_id": request.ID, "message": "Left side"})
	if assigned.status != fiber.StatusCreated || assigned.body["notified"] != true {
		t.Fatalf("assign status = %d body = %s", assigned.status, assigned.raw)
	}
	if len(m.messenger.sent) != 1 || m.messenger.sent[0].to != "+94112345678" || !strings.Contains(m.messenger.sent[0].body, "Left side") {
		t.Fatalf("messages = %+v", m.messenger.sent)
	}

	var stored models.VehiclePartRequest
	if err := m.db.First(&stored, "id = ?", request.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != models.RequestStatusInProgress {
		t.Fatalf("status = %q, want in_progress", stored.Status)
	}

	dup := m.do(t, http.MethodPost, path, adminToken, fiber.Map{"request_id": request.ID})
	if dup.status != fiber.StatusConflict {
		t.Fatalf("duplicate assign status = %d body = %s", dup.status, dup.raw)
	}
	if n := m.count(t, &models.RequestShop{}, "request_id = ?", request.ID); n != 1 {
		t.Fatalf("links = %d, want 1", n)
	}
}

func TestAssignRequestDeliveryFailure(t *testing.T) {
	m := newMarket(t)
	owner, _ := m.user(t, "+94771234567", models.UserTypeUser)
	_, adminToken := m.user(t, "+94701234567", models.UserTypeAdmin)
	request := m.request(t, owner, models.RequestStatusPending)
	m.messenger.err = errors.New("twilio down")

	shop := m.do(t, http.MethodPost, "/api/shops", adminToken, fiber.Map{"name": "Kandy Motors", "phone_number": "0812345678"})
	resp := m.do(t, http.MethodPost, "/api/shops/"+shop.data()["id"].(string)+"/requests", adminToken, fiber.Map{"request_id": request.ID})
	if resp.status != fiber.StatusCreated || resp.body["notified"] != false {
		t.Fatalf("status = %d body = %s", resp.status, resp.raw)
	}

	inactive := m.do(t, http.MethodPost, "/api/shops", adminToken, fiber.Map{"name": "Closed", "phone_number": "0912345678", "active": false})
	if inactive.data()["active"] != false {
		t.Fatalf("inactive shop = %s", inactive.raw)
	}
	if n := m.count(t, &models.Shop{}, "id = ? AND active = ?", inactive.data()["id"], false); n != 1 {
		t.Fatal("inactive shop stored as active")
	}
	closed := m.do(t, http.MethodPost, "/api/shops/"+inactive.data()["id"].(string)+"/requests", adminToken, fiber.Map{"request_id": request.ID})
	if closed.status != fiber.StatusConflict {
		t.Fatalf("inactive shop assign status = %d", closed.status)
	}
}

func TestDeletePartRequestWithOffers(t *testing.T) {
	m := newMarket(t)
	owner, ownerToken := m.user(t, "+94771234567", models.UserTypeUser)
	_, otherToken := m.user(t, "+94712345678", models.UserTypeUser)
	request := m.request(t, owner, models.RequestStatusCompleted)
	product := m.product(t, request, 1500)
	shop := models.Shop{Name: "Lanka Auto", PhoneNumber: "+94112345678", Active: true}
	if err := m.db.Create(&shop).Error; err != nil {
		t.Fatalf("create shop: %v", err)
	}
	if err := m.db.Create(&models.RequestShop{RequestID: request.ID, ShopID: shop.ID}).Error; err != nil {
		t.Fatalf("create link: %v", err)
	}
	cartID := m.cart(t)
	m.do(t, http.MethodPost, "/api/cart-items", "", fiber.Map{"cart_id": cartID, "product_id": product.ID})

	path := "/api/vehicle-part-requests/" + request.ID.String()
	if resp := m.do(t, http.MethodDelete, path, otherToken, nil); resp.status != fiber.StatusNotFound {
		t.Fatalf("foreign delete status = %d", resp.status)
	}

	resp := m.do(t, http.MethodDelete, path, ownerToken, nil)
	if resp.status != fiber.StatusOK {
		t.Fatalf("delete status = %d body = %s", resp.status, resp.raw)
	}

	checks := []struct {
		model interface{}
		query string
		arg   interface{}
	}{
		{&models.VehiclePartRequest{}, "id = ?", request.ID},
		{&models.Product{}, "id = ?", product.ID},
		{&models.RequestShop{}, "request_id = ?", request.ID},
		{&models.CartItem{}, "product_id = ?", product.ID},
	}
	for _, c := range checks {
		if n := m.count(t, c.model, c.query, c.arg); n != 0 {
			t.Fatalf("%T rows left = %d", c.model, n)
		}
	}
	if n := m.count(t, &models.Shop{}, "id = ?", shop.ID); n != 1 {
		t.Fatal("shop must survive request deletion")
	}
}

func TestPartRequestStats(t *testing.T) {
	m := newMarket(t)
	owner, token := m.user(t, "+94771234567", models.UserTypeUser)
	other, _ := m.user(t, "+94712345678", models.UserTypeUser)
	for _, status := range []string{
		models.RequestStatusPending,
		models.RequestStatusPending,
		models.RequestStatusCompleted,
		models.RequestStatusCancelled,
	} {
		m.request(t, owner, status)
	}
	m.request(t, other, models.RequestStatusInProgress)

	resp := m.do(t, http.MethodGet, "/api/vehicle-part-requests/stats", token, nil)
	if resp.status != fiber.StatusOK {
		t.Fatalf("status = %d body = %s", resp.status, resp.raw)
	}
	want := map[string]float64{"total": 4, "pending": 2, "in_progress": 0, "completed": 1, "cancelled": 1}
	for key, n := range want {
		if resp.data()[key] != n {
			t.Fatalf("%s = %v, want %v (body %s)", key, resp.data()[key], n, resp.raw)
		}
	}

	list := m.do(t, http.MethodGet, "/api/vehicle-part-requests?status=pending", token, nil)
	if rows, _ := list.body["data"].([]interface{}); len(rows) != 2 {
		t.Fatalf("pending list = %s", list.raw)
	}
	if bad := m.do(t, http.MethodGet, "/api/vehicle-part-requests?status=lost", token, nil); bad.status != fiber.StatusBadRequest {
		t.Fatalf("bad status filter = %d", bad.status)
	}
}

func TestUpdatePartRequest(t *testing.T) {
	m := newMarket(t)
	owner, token := m.user(t, "+94771234567", models.UserTypeUser)
	request := m.request(t, owner, models.RequestStatusPending)
	path := "/api/vehicle-part-requests/" + request.ID.String()

	resp := m.do(t, http.MethodPatch, path, token, fiber.Map{"status": "cancelled", "part_number": "87910-12345"})
	if resp.status != fiber.StatusOK || resp.data()["status"] != "cancelled" || resp.data()["part_number"] != "87910-12345" {
		t.Fatalf("update status = %d body = %s", resp.status, resp.raw)
	}

	cases := []fiber.Map{{"status": "lost"}, {"vehicle_year": 1850}, {}}
	for _, payload := range cases {
		if bad := m.do(t, http.MethodPatch, path, token, payload); bad.status != fiber.StatusBadRequest {
			t.Fatalf("payload %v: status = %d", payload, bad.status)
		}
	}
}

func TestCreatePartRequestWithImage(t *testing.T) {
	m := newMarket(t)
	_, token := m.user(t, "+94771234567", models.UserTypeUser)

	build := func(contentType string) *http.Request {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		for k, v := range map[string]string{
			"vehicle_type":  "van",
			"vehicle_model": "Nissan Caravan",
			"vehicle_year":  "2012",
			"part_name":     "Headlamp",
		} {
			_ = w.WriteField(k, v)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="part_image"; filename="lamp.png"`)
		h.Set("Content-Type", contentType)
		part, _ := w.CreatePart(h)
		_, _ = part.Write([]byte("\x89PNG fake"))
		_ = w.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/vehicle-part-requests", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req
	}

	resp := m.send(t, build("image/png"), token)
	if resp.status != fiber.StatusCreated {
		t.Fatalf("status = %d body = %s", resp.status, resp.raw)
	}
	url, _ := resp.data()["part_image"].(string)
	if !strings.HasPrefix(url, "http://localhost:8080/uploads/part_images/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("part_image = %q", url)
	}

	if bad := m.send(t, build("text/plain"), token); bad.status != fiber.StatusBadRequest {
		t.Fatalf("text upload status = %d", bad.status)
	}
	if n := m.count(t, &models.VehiclePartRequest{}, "1 = 1"); n != 1 {
		t.Fatalf("requests stored = %d, want 1", n)
	}
}

func TestAdminUserManagement(t *testing.T) {
	m := newMarket(t)
	owner, userToken := m.user(t, "+94771234567", models.UserTypeUser)
	_, adminToken := m.user(t, "+94701234567", models.UserTypeAdmin)
	m.request(t, owner, models.RequestStatusPending)
	m.request(t, owner, models.RequestStatusCompleted)

	if resp := m.do(t, http.MethodGet, "/api/admin/users", userToken, nil); resp.status != fiber.StatusForbidden {
		t.Fatalf("non-admin list status = %d", resp.status)
	}

	list := m.do(t, http.MethodGet, "/api/admin/users?user_type=user", adminToken, nil)
	rows, _ := list.body["data"].([]interface{})
	if list.status != fiber.StatusOK || len(rows) != 1 {
		t.Fatalf("list status = %d body = %s", list.status, list.raw)
	}
	if row := rows[0].(map[string]interface{}); row["request_count"] != float64(2) {
		t.Fatalf("request_count = %v", row["request_count"])
	}

	path := "/api/admin/users/" + owner.ID.String()
	if resp := m.do(t, http.MethodPut, path, adminToken, fiber.Map{"is_active": false}); resp.status != fiber.StatusOK {
		t.Fatalf("deactivate status = %d body = %s", resp.status, resp.raw)
	}
	var stored models.User
	if err := m.db.First(&stored, "id = ?", owner.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.IsActive {
		t.Fatal("user still active")
	}

	if resp := m.do(t, http.MethodPut, "/api/admin/users/"+uuid.NewString(), adminToken, fiber.Map{"is_active": true}); resp.status != fiber.StatusNotFound {
		t.Fatalf("unknown user status = %d", resp.status)
	}
}

func TestRegisterAndLoginOnGormRepository(t *testing.T) {
	m := newMarket(t)

	reg := m.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"first_name": "Nimal", "phone": "0771234567", "password": "old-password", "confirm_password": "old-password",
	})
	if reg.status != fiber.StatusCreated {
		t.Fatalf("register status = %d body = %s", reg.status, reg.raw)
	}
	dup := m.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"first_name": "Other", "phone": "+94 77 123 4567", "password": "old-password", "confirm_password": "old-password",
	})
	if dup.status != fiber.StatusConflict {
		t.Fatalf("duplicate register status = %d", dup.status)
	}

	login := m.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"identifier": "94771234567", "password": "old-password"})
	if login.status != fiber.StatusOK || login.body["refresh_token"] == nil {
		t.Fatalf("login status = %d body = %s", login.status, login.raw)
	}
}
