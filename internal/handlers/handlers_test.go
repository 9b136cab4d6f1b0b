// handlers_test.go
//
// A scalable, high performance drop-in replacement for the tipjar nodejs data service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of tipjar.
// tipjar is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// tipjar is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with tipjar.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/tipjar/internal/config"
	"github.com/localnerve/tipjar/internal/handlers"
	"github.com/localnerve/tipjar/internal/models"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/localnerve/tipjar/internal/state"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for handler testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Creator{},
		&models.Donation{},
		&models.Goal{},
		&models.Message{},
		&models.DailyAnalytics{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		CoffeeUnitPrice: decimal.NewFromInt(3),
	}
}

// mockAuth sets the authorizer user in context the way the auth middleware
// would after session validation.
func mockAuth(email string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{
			"id":    "auth-user-1",
			"email": email,
		})
		return c.Next()
	}
}

func registerCreator(t *testing.T, db *gorm.DB, email, username string) *models.Creator {
	creator, err := services.RegisterCreator(db, services.RegisterCreatorInput{
		Email:    email,
		Username: username,
	})
	if err != nil {
		t.Fatalf("Failed to register creator: %v", err)
	}
	return creator
}

func sendJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]interface{}
	_ = json.Unmarshal(raw, &decoded)

	return resp.StatusCode, decoded
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	return sendJSON(t, app, "POST", path, body)
}

func TestCreateDonation_HTTP(t *testing.T) {
	db := setupTestDB(t)
	registerCreator(t, db, "maria@example.com", "maria")

	app := fiber.New()
	handler := &handlers.DonationHandler{DB: db, Config: testConfig()}
	app.Post("/api/creators/:username/donations", handler.Create)

	status, body := postJSON(t, app, "/api/creators/maria/donations", map[string]interface{}{
		"amount":          10,
		"supporterName":   "Sam",
		"paymentId":       "pay_1",
		"paymentProvider": "stripe",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201 (%v)", status, body)
	}
	if body["paymentStatus"] != "pending" {
		t.Errorf("paymentStatus = %v, want pending", body["paymentStatus"])
	}
	if body["coffeeCount"] != float64(3) {
		t.Errorf("coffeeCount = %v, want 3", body["coffeeCount"])
	}
}

func TestCreateDonation_HTTP_Validation(t *testing.T) {
	db := setupTestDB(t)
	registerCreator(t, db, "maria@example.com", "maria")

	app := fiber.New()
	handler := &handlers.DonationHandler{DB: db, Config: testConfig()}
	app.Post("/api/creators/:username/donations", handler.Create)

	// Amount out of bounds
	status, body := postJSON(t, app, "/api/creators/maria/donations", map[string]interface{}{
		"amount":          0,
		"paymentProvider": "stripe",
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for zero amount (%v)", status, body)
	}
	if body["field"] != "amount" {
		t.Errorf("field = %v, want amount", body["field"])
	}

	// Unknown provider
	status, _ = postJSON(t, app, "/api/creators/maria/donations", map[string]interface{}{
		"amount":          10,
		"paymentProvider": "venmo",
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown provider", status)
	}

	// Unknown creator
	status, _ = postJSON(t, app, "/api/creators/ghost/donations", map[string]interface{}{
		"amount":          10,
		"paymentProvider": "stripe",
	})
	if status != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown creator", status)
	}
}

func TestWebhook_HTTP(t *testing.T) {
	db := setupTestDB(t)
	creator := registerCreator(t, db, "maria@example.com", "maria")

	store, err := state.NewStore(nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if _, err := services.CreateDonation(db, creator, decimal.NewFromInt(3), services.CreateDonationInput{
		Amount:          decimal.NewFromInt(10),
		SupporterEmail:  "sam@example.com",
		PaymentID:       "pay_1",
		PaymentProvider: models.PaymentProviderStripe,
	}); err != nil {
		t.Fatalf("CreateDonation failed: %v", err)
	}

	app := fiber.New()
	handler := &handlers.PaymentHandler{DB: db, State: store}
	app.Post("/api/payments/webhook", handler.Webhook)

	// Provider reports settlement; "succeeded" normalizes to completed
	status, body := postJSON(t, app, "/api/payments/webhook", map[string]interface{}{
		"payment_id": "pay_1",
		"status":     "succeeded",
	})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 (%v)", status, body)
	}
	data, _ := body["data"].(map[string]interface{})
	if data["applied"] != true {
		t.Errorf("applied = %v, want true", data["applied"])
	}

	// The rollup ran synchronously
	reloaded, _ := services.GetCreatorByUsername(db, "maria")
	if !reloaded.TotalDonations.Equal(decimal.NewFromInt(10)) {
		t.Errorf("TotalDonations = %s, want 10 after webhook", reloaded.TotalDonations)
	}

	// A completed donation queued a notification
	notifications := store.Drain(creator.ID)
	if len(notifications) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifications))
	}

	// Duplicate delivery is a 200 no-op
	status, body = postJSON(t, app, "/api/payments/webhook", map[string]interface{}{
		"payment_id": "pay_1",
		"status":     "succeeded",
	})
	if status != fiber.StatusOK {
		t.Fatalf("duplicate status = %d, want 200", status)
	}
	data, _ = body["data"].(map[string]interface{})
	if data["applied"] != false {
		t.Errorf("duplicate applied = %v, want false", data["applied"])
	}

	// Conflicting later event is rejected
	status, _ = postJSON(t, app, "/api/payments/webhook", map[string]interface{}{
		"payment_id": "pay_1",
		"status":     "failed",
	})
	if status != fiber.StatusConflict {
		t.Fatalf("conflicting status = %d, want 409", status)
	}

	// Unknown payment reference
	status, _ = postJSON(t, app, "/api/payments/webhook", map[string]interface{}{
		"payment_id": "pay_ghost",
		"status":     "succeeded",
	})
	if status != fiber.StatusNotFound {
		t.Fatalf("unknown payment status = %d, want 404", status)
	}
}

func TestRegisterAndGetMe_HTTP(t *testing.T) {
	db := setupTestDB(t)

	app := fiber.New()
	handler := &handlers.CreatorHandler{DB: db}
	app.Use(mockAuth("maria@example.com"))
	app.Post("/api/creators", handler.Register)
	app.Get("/api/creators/me", handler.GetMe)

	status, body := postJSON(t, app, "/api/creators", map[string]interface{}{
		"username": "maria",
		"name":     "Maria",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("register status = %d, want 201 (%v)", status, body)
	}
	if body["email"] != "maria@example.com" {
		t.Errorf("email = %v, want bound to the session identity", body["email"])
	}

	req := httptest.NewRequest("GET", "/api/creators/me", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("GetMe request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("GetMe status = %d, want 200", resp.StatusCode)
	}

	var me map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if me["username"] != "maria" {
		t.Errorf("username = %v, want maria", me["username"])
	}
}

func TestRegister_HTTP_Validation(t *testing.T) {
	db := setupTestDB(t)

	app := fiber.New()
	handler := &handlers.CreatorHandler{DB: db}
	app.Use(mockAuth("maria@example.com"))
	app.Post("/api/creators", handler.Register)

	// Username below the 3-character floor
	status, body := postJSON(t, app, "/api/creators", map[string]interface{}{
		"username": "ab",
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for short username (%v)", status, body)
	}
	if body["field"] != "username" {
		t.Errorf("field = %v, want username", body["field"])
	}

	// Nothing was persisted
	if _, err := services.GetCreatorByEmail(db, "maria@example.com"); err == nil {
		t.Error("rejected registration must not create a creator")
	}
}

func TestUpdateProfile_HTTP_Validation(t *testing.T) {
	db := setupTestDB(t)
	registerCreator(t, db, "maria@example.com", "maria")

	app := fiber.New()
	handler := &handlers.CreatorHandler{DB: db}
	app.Use(mockAuth("maria@example.com"))
	app.Put("/api/creators/me", handler.UpdateMe)

	// Oversized bio
	status, body := sendJSON(t, app, "PUT", "/api/creators/me", map[string]interface{}{
		"bio": strings.Repeat("x", 501),
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for oversized bio (%v)", status, body)
	}
	if body["field"] != "bio" {
		t.Errorf("field = %v, want bio", body["field"])
	}

	// Unsupported currency
	status, body = sendJSON(t, app, "PUT", "/api/creators/me", map[string]interface{}{
		"currency": "ZZZZ",
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unsupported currency (%v)", status, body)
	}
	if body["field"] != "currency" {
		t.Errorf("field = %v, want currency", body["field"])
	}

	// Rejected input never reached the row
	reloaded, err := services.GetCreatorByUsername(db, "maria")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Bio != "" || reloaded.Currency != models.CurrencyUSD {
		t.Errorf("profile changed by rejected input: bio %d chars, currency %q",
			len(reloaded.Bio), reloaded.Currency)
	}
}

func TestUpdateProfile_HTTP_RefreshesSnapshot(t *testing.T) {
	db := setupTestDB(t)
	creator := registerCreator(t, db, "maria@example.com", "maria")

	store, err := state.NewStore(nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	app := fiber.New()
	handler := &handlers.CreatorHandler{DB: db, State: store}
	app.Use(mockAuth("maria@example.com"))
	app.Put("/api/creators/me", handler.UpdateMe)

	status, body := sendJSON(t, app, "PUT", "/api/creators/me", map[string]interface{}{
		"name": "Maria G",
	})
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 (%v)", status, body)
	}

	snapshot, ok := store.CurrentUser(creator.ID)
	if !ok {
		t.Fatal("profile update should cache the user snapshot")
	}
	if snapshot.Name != "Maria G" {
		t.Errorf("cached name = %q, want Maria G", snapshot.Name)
	}
}

func TestGetPublicProfile_HTTP(t *testing.T) {
	db := setupTestDB(t)
	creator := registerCreator(t, db, "maria@example.com", "maria")

	app := fiber.New()
	handler := &handlers.CreatorHandler{DB: db}
	app.Get("/api/creators/:username", handler.GetPublicProfile)

	req := httptest.NewRequest("GET", "/api/creators/maria", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var profile map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if profile["username"] != "maria" {
		t.Errorf("username = %v, want maria", profile["username"])
	}
	// The public shape never carries the email
	if _, leaked := profile["email"]; leaked {
		t.Error("public profile must not expose the email")
	}

	// The view was recorded
	var row models.DailyAnalytics
	if err := db.Where("creator_id = ?", creator.ID).First(&row).Error; err != nil {
		t.Fatalf("analytics row missing: %v", err)
	}
	if row.Views != 1 {
		t.Errorf("Views = %d, want 1", row.Views)
	}

	// Hidden profiles 404
	hidden := false
	if _, err := services.UpdateProfile(db, creator.ID, services.UpdateProfileInput{
		IsPublic: &hidden,
	}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	resp2, err := app.Test(httptest.NewRequest("GET", "/api/creators/maria", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != fiber.StatusNotFound {
		t.Fatalf("hidden profile status = %d, want 404", resp2.StatusCode)
	}
}

func TestRefund_HTTP_Ownership(t *testing.T) {
	db := setupTestDB(t)
	maria := registerCreator(t, db, "maria@example.com", "maria")
	registerCreator(t, db, "other@example.com", "other")

	donation, err := services.CreateDonation(db, maria, decimal.NewFromInt(3), services.CreateDonationInput{
		Amount:          decimal.NewFromInt(10),
		PaymentID:       "pay_1",
		PaymentProvider: models.PaymentProviderStripe,
	})
	if err != nil {
		t.Fatalf("CreateDonation failed: %v", err)
	}
	if _, _, err := services.ApplyPaymentEvent(db, "pay_1", models.DonationStatusCompleted); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// The wrong creator gets a 403
	app := fiber.New()
	handler := &handlers.DonationHandler{DB: db, Config: testConfig()}
	app.Use(mockAuth("other@example.com"))
	app.Post("/api/donations/:id/refund", handler.Refund)

	req := httptest.NewRequest("POST", "/api/donations/1/refund", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("foreign refund status = %d, want 403", resp.StatusCode)
	}

	// The owner succeeds
	owner := fiber.New()
	owner.Use(mockAuth("maria@example.com"))
	owner.Post("/api/donations/:id/refund", handler.Refund)

	resp2, err := owner.Test(httptest.NewRequest("POST", "/api/donations/1/refund", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != fiber.StatusOK {
		t.Fatalf("owner refund status = %d, want 200", resp2.StatusCode)
	}

	var reloaded models.Donation
	if err := db.First(&reloaded, donation.ID).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.PaymentStatus != models.DonationStatusRefunded {
		t.Errorf("status = %q, want refunded", reloaded.PaymentStatus)
	}
}

func TestMessages_HTTP_Disabled(t *testing.T) {
	db := setupTestDB(t)
	creator := registerCreator(t, db, "maria@example.com", "maria")

	allow := false
	if _, err := services.UpdateProfile(db, creator.ID, services.UpdateProfileInput{
		AllowMessages: &allow,
	}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	app := fiber.New()
	handler := &handlers.MessageHandler{DB: db}
	app.Post("/api/creators/:username/messages", handler.Create)

	status, _ := postJSON(t, app, "/api/creators/maria/messages", map[string]interface{}{
		"subject": "hi",
		"content": "hello",
	})
	if status != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403 when messages are off", status)
	}
}
