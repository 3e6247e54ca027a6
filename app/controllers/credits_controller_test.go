package controllers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/auto-analyst/billing/internal/pkg/credits"
	"github.com/auto-analyst/billing/internal/pkg/ledger"
	"github.com/auto-analyst/billing/internal/pkg/plans"
	"github.com/auto-analyst/billing/internal/pkg/usercontext"
)

type fakeLedger struct {
	credits map[string]*ledger.CreditRecord
	subs    map[string]*ledger.SubscriptionRecord
	claims  map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		credits: make(map[string]*ledger.CreditRecord),
		subs:    make(map[string]*ledger.SubscriptionRecord),
		claims:  make(map[string]bool),
	}
}

func (f *fakeLedger) GetCredits(_ context.Context, userID string) (*ledger.CreditRecord, error) {
	rec, ok := f.credits[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeLedger) SaveCredits(_ context.Context, userID string, rec *ledger.CreditRecord) error {
	cp := *rec
	f.credits[userID] = &cp
	return nil
}

func (f *fakeLedger) GetSubscription(_ context.Context, userID string) (*ledger.SubscriptionRecord, error) {
	rec, ok := f.subs[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeLedger) SaveSubscription(_ context.Context, userID string, rec *ledger.SubscriptionRecord) error {
	cp := *rec
	f.subs[userID] = &cp
	return nil
}

func (f *fakeLedger) DeleteSubscription(_ context.Context, userID string) error {
	delete(f.subs, userID)
	return nil
}

func (f *fakeLedger) ClaimFreeGrant(_ context.Context, userID, month string) (bool, error) {
	key := userID + ":" + month
	if f.claims[key] {
		return false, nil
	}
	f.claims[key] = true
	return true, nil
}

func newCreditsTestApp(store ledger.Store, userCtx *usercontext.UserContext) *fiber.App {
	table := plans.NewTable(map[string]plans.Plan{"price_std": plans.PlanStandard})
	InitializeCreditsController(credits.NewService(store, table, nil))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userCtx != nil {
			c.Locals("USER_CONTEXT", *userCtx)
		}
		return c.Next()
	})
	app.Get("/api/user/credits", HandleGetUserCredits)
	app.Post("/api/user/credits", HandleAdminCredits)
	return app
}

func TestHandleGetUserCredits_Unauthorized(t *testing.T) {
	app := newCreditsTestApp(newFakeLedger(), nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/user/credits", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleGetUserCredits(t *testing.T) {
	store := newFakeLedger()
	store.credits["u1"] = &ledger.CreditRecord{Total: 500, Used: 120}
	app := newCreditsTestApp(store, &usercontext.UserContext{UserID: "u1", IsLoggedIn: true})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/user/credits", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(500), body["total"])
	assert.Equal(t, float64(120), body["used"])
}

func TestHandleGetUserCredits_UnlimitedSentinel(t *testing.T) {
	store := newFakeLedger()
	store.credits["u1"] = &ledger.CreditRecord{Total: plans.DefaultUnlimitedTotal, Used: 9000}
	app := newCreditsTestApp(store, &usercontext.UserContext{UserID: "u1", IsLoggedIn: true})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/user/credits", nil))
	assert.NoError(t, err)

	var body map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unlimited", body["total"])

	// The stored record keeps the numeric sentinel.
	assert.Equal(t, plans.DefaultUnlimitedTotal, store.credits["u1"].Total)
}

func TestHandleAdminCredits_Validation(t *testing.T) {
	app := newCreditsTestApp(newFakeLedger(), &usercontext.UserContext{UserID: "admin1", IsLoggedIn: true, IsAdmin: true})

	req := httptest.NewRequest("POST", "/api/user/credits", strings.NewReader(`{"action":"explode","userId":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleAdminCredits_DeductInsufficient(t *testing.T) {
	store := newFakeLedger()
	store.credits["u1"] = &ledger.CreditRecord{Total: 100, Used: 95}
	app := newCreditsTestApp(store, &usercontext.UserContext{UserID: "admin1", IsLoggedIn: true, IsAdmin: true})

	req := httptest.NewRequest("POST", "/api/user/credits", strings.NewReader(`{"action":"deduct","userId":"u1","amount":10}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "insufficient_credits", body["error"])
}

func TestHandleAdminCredits_Reset(t *testing.T) {
	store := newFakeLedger()
	store.credits["u1"] = &ledger.CreditRecord{Total: 500, Used: 400}
	app := newCreditsTestApp(store, &usercontext.UserContext{UserID: "admin1", IsLoggedIn: true, IsAdmin: true})

	req := httptest.NewRequest("POST", "/api/user/credits", strings.NewReader(`{"action":"reset","userId":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, plans.FreeMonthlyCredits, store.credits["u1"].Total)
	assert.Equal(t, 0, store.credits["u1"].Used)
}

func TestHandleAdminCredits_ResetCanceledUser(t *testing.T) {
	store := newFakeLedger()
	store.subs["u1"] = &ledger.SubscriptionRecord{Status: ledger.StatusCanceled}
	app := newCreditsTestApp(store, &usercontext.UserContext{UserID: "admin1", IsLoggedIn: true, IsAdmin: true})

	req := httptest.NewRequest("POST", "/api/user/credits", strings.NewReader(`{"action":"reset","userId":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "cannot_reset_canceled_user", body["error"])
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "", formatTime(time.Time{}))

	ts := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-06-15T12:00:00Z", formatTime(ts))
}
