package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"green-rewards/internal/config"
	"green-rewards/internal/models"
	"green-rewards/internal/router"
	"green-rewards/internal/seed"
	"green-rewards/internal/store/memory"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	st := memory.New()
	logger := zerolog.Nop()
	if err := seed.Run(context.Background(), st, seed.Defaults(), logger); err != nil {
		t.Fatalf("seed.Run() error = %v", err)
	}

	cfg := config.Config{
		StoreDriver: config.DriverMemory,
		JWTSecret:   "router-test-secret",
		RateLimit:   1000,
		RateBurst:   1000,
		CORSOrigins: []string{"*"},
	}
	server := httptest.NewServer(router.SetupRouter(st, cfg, logger))
	t.Cleanup(server.Close)
	return &apiClient{t: t, server: server}
}

func (c *apiClient) do(method, path, token string, body interface{}, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.server.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *apiClient) login(identifier, password string) models.AuthResponse {
	c.t.Helper()
	var out models.AuthResponse
	code := c.do("POST", "/api/v1/auth/login", "", map[string]string{"identifier": identifier, "password": password}, &out)
	if code != http.StatusOK {
		c.t.Fatalf("login %s status = %d", identifier, code)
	}
	return out
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func TestLedgerFlow(t *testing.T) {
	api := newAPI(t)

	var registered models.AuthResponse
	code := api.do("POST", "/api/v1/auth/register", "", models.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Phone: "0900000001", Password: "pw123",
	}, &registered)
	if code != http.StatusCreated {
		t.Fatalf("register status = %d", code)
	}
	if registered.User.IsAdmin || registered.User.IsManager || registered.User.Point != 0 {
		t.Fatalf("unexpected registered user %+v", registered.User)
	}
	userToken := registered.Token

	admin := api.login("admin", "admin1")
	if !admin.User.IsAdmin || !admin.User.IsManager {
		t.Fatalf("admin flags = %+v", admin.User)
	}
	manager := api.login("manager@system.com", "manager1")

	// Redeem twice with the same bill.
	var redeem models.RedeemBillResponse
	body := models.RedeemBillRequest{Identity: "USERQR|alice", Partner: "Green Mart", BillCode: "B1", Point: 120}
	if code := api.do("POST", "/api/v1/scan/add-point", manager.Token, body, &redeem); code != http.StatusOK {
		t.Fatalf("add-point status = %d", code)
	}
	if redeem.NewPoint != 120 {
		t.Fatalf("new_point = %d, want 120", redeem.NewPoint)
	}
	var dup apiError
	if code := api.do("POST", "/api/v1/scan/add-point", manager.Token, body, &dup); code != http.StatusConflict || dup.Error != "duplicate_bill" {
		t.Fatalf("duplicate add-point = %d %+v", code, dup)
	}
	if code := api.do("POST", "/api/v1/scan/add-point", userToken, body, nil); code != http.StatusForbidden {
		t.Fatalf("user add-point status = %d, want 403", code)
	}

	// Admin creates a voucher limited to one per user.
	var voucher models.Voucher
	code = api.do("POST", "/api/v1/admin/vouchers", admin.Token, models.CreateVoucherRequest{
		Partner: "Green Mart", Point: 50, MaxPerUser: 1, Expired: time.Now().Add(24 * time.Hour),
	}, &voucher)
	if code != http.StatusCreated {
		t.Fatalf("create voucher status = %d", code)
	}

	var exchanged models.ExchangeResponse
	if code := api.do("POST", "/api/v1/vouchers/"+voucher.ID+"/exchange", userToken, nil, &exchanged); code != http.StatusCreated {
		t.Fatalf("exchange status = %d", code)
	}
	if exchanged.NewPoint != 70 || exchanged.Grant == nil {
		t.Fatalf("unexpected exchange response %+v", exchanged)
	}
	var quota apiError
	if code := api.do("POST", "/api/v1/vouchers/"+voucher.ID+"/exchange", userToken, nil, &quota); code != http.StatusConflict || quota.Error != "quota_exceeded" {
		t.Fatalf("second exchange = %d %+v", code, quota)
	}

	var mine struct {
		Vouchers []models.Grant `json:"vouchers"`
	}
	if code := api.do("GET", "/api/v1/users/me/vouchers", userToken, nil, &mine); code != http.StatusOK || len(mine.Vouchers) != 1 {
		t.Fatalf("my vouchers = %d %+v", code, mine)
	}

	if code := api.do("PUT", "/api/v1/grants/"+exchanged.Grant.ID+"/use", manager.Token, nil, nil); code != http.StatusOK {
		t.Fatalf("use grant status = %d", code)
	}
	if code := api.do("PUT", "/api/v1/grants/"+exchanged.Grant.ID+"/use", manager.Token, nil, nil); code != http.StatusNotFound {
		t.Fatalf("reuse grant status = %d, want 404", code)
	}

	var stats models.VoucherStats
	api.do("GET", "/api/v1/admin/vouchers/stats", admin.Token, nil, &stats)
	if stats != (models.VoucherStats{Total: 1, Available: 1, Exchanged: 1, Used: 1}) {
		t.Fatalf("stats = %+v", stats)
	}

	// Reset, then reset again.
	aliceID := registered.User.ID
	if code := api.do("PUT", "/api/v1/users/"+aliceID+"/reset-point", admin.Token, models.ResetPointsRequest{Reason: "audit"}, nil); code != http.StatusOK {
		t.Fatalf("reset status = %d", code)
	}
	var zero apiError
	if code := api.do("PUT", "/api/v1/users/"+aliceID+"/reset-point", admin.Token, nil, &zero); code != http.StatusConflict || zero.Error != "zero_balance" {
		t.Fatalf("second reset = %d %+v", code, zero)
	}

	var history struct {
		History []models.HistoryEntry `json:"history"`
	}
	if code := api.do("GET", "/api/v1/users/me/history", userToken, nil, &history); code != http.StatusOK {
		t.Fatalf("history status = %d", code)
	}
	wantTypes := []models.EntryType{models.EntryTypeReset, models.EntryTypeRedeem, models.EntryTypeEarn}
	if len(history.History) != len(wantTypes) {
		t.Fatalf("history = %+v", history.History)
	}
	for i, want := range wantTypes {
		if history.History[i].Type != want {
			t.Errorf("history[%d] = %s, want %s", i, history.History[i].Type, want)
		}
	}
	if history.History[0].Amount != -70 {
		t.Errorf("reset amount = %d, want -70", history.History[0].Amount)
	}
}

func TestAdminProtections(t *testing.T) {
	api := newAPI(t)
	admin := api.login("admin", "admin1")

	var me models.AccountResponse
	if code := api.do("GET", "/api/v1/users/me", admin.Token, nil, &me); code != http.StatusOK {
		t.Fatalf("me status = %d", code)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"demote admin", "PUT", "/api/v1/users/" + me.ID + "/role", models.UpdateRoleRequest{Role: "user"}, http.StatusForbidden, "protected_account"},
		{"delete admin", "DELETE", "/api/v1/users/" + me.ID, nil, http.StatusForbidden, "protected_account"},
		{"reset admin", "PUT", "/api/v1/users/" + me.ID + "/reset-point", nil, http.StatusForbidden, "protected_account"},
		{"unknown user", "GET", "/api/v1/users/missing", nil, http.StatusNotFound, "account_not_found"},
		{"bad role", "PUT", "/api/v1/users/" + me.ID + "/role", models.UpdateRoleRequest{Role: "owner"}, http.StatusBadRequest, "invalid_input"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out apiError
			code := api.do(tc.method, tc.path, admin.Token, tc.body, &out)
			if code != tc.wantCode || out.Error != tc.wantErr {
				t.Fatalf("%s %s = %d %+v, want %d %s", tc.method, tc.path, code, out, tc.wantCode, tc.wantErr)
			}
		})
	}
}

func TestExchangeSpendsOnlyTheCallersPoints(t *testing.T) {
	api := newAPI(t)
	admin := api.login("admin", "admin1")
	manager := api.login("manager", "manager1")

	var victim models.AuthResponse
	if code := api.do("POST", "/api/v1/auth/register", "", models.RegisterRequest{
		Username: "victim", Email: "victim@example.com", Phone: "5550001", Password: "pw",
	}, &victim); code != http.StatusCreated {
		t.Fatalf("register victim status = %d", code)
	}
	credit := models.RedeemBillRequest{Identity: "5550001", Partner: "Green Mart", BillCode: "B1", Point: 100}
	if code := api.do("POST", "/api/v1/scan/add-point", manager.Token, credit, nil); code != http.StatusOK {
		t.Fatalf("add-point status = %d", code)
	}

	var taken apiError
	code := api.do("POST", "/api/v1/auth/register", "", models.RegisterRequest{
		Username: "5550001", Email: "attacker@example.com", Phone: "5550002", Password: "pw",
	}, &taken)
	if code != http.StatusConflict || taken.Error != "account_exists" {
		t.Fatalf("register with victim phone as username = %d %+v", code, taken)
	}

	var attacker models.AuthResponse
	if code := api.do("POST", "/api/v1/auth/register", "", models.RegisterRequest{
		Username: "attacker", Email: "attacker@example.com", Phone: "5550002", Password: "pw",
	}, &attacker); code != http.StatusCreated {
		t.Fatalf("register attacker status = %d", code)
	}

	var voucher models.Voucher
	if code := api.do("POST", "/api/v1/admin/vouchers", admin.Token, models.CreateVoucherRequest{
		Partner: "Green Mart", Point: 50, Expired: time.Now().Add(time.Hour),
	}, &voucher); code != http.StatusCreated {
		t.Fatalf("create voucher status = %d", code)
	}

	var broke apiError
	if code := api.do("POST", "/api/v1/vouchers/"+voucher.ID+"/exchange", attacker.Token, nil, &broke); code != http.StatusConflict || broke.Error != "insufficient_balance" {
		t.Fatalf("attacker exchange = %d %+v", code, broke)
	}

	var got models.AccountResponse
	if code := api.do("GET", "/api/v1/users/"+victim.User.ID, admin.Token, nil, &got); code != http.StatusOK || got.Point != 100 {
		t.Fatalf("victim = %d %+v, want 100 points", code, got)
	}
}

func TestAuthErrors(t *testing.T) {
	api := newAPI(t)

	var out apiError
	if code := api.do("POST", "/api/v1/auth/login", "", map[string]string{"identifier": "admin", "password": "wrong"}, &out); code != http.StatusUnauthorized || out.Error != "invalid_credentials" {
		t.Fatalf("bad login = %d %+v", code, out)
	}
	if code := api.do("GET", "/api/v1/users/me", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous me status = %d", code)
	}
	if code := api.do("GET", "/api/v1/users/me", "not-a-token", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d", code)
	}

	manager := api.login("manager", "manager1")
	if code := api.do("GET", "/api/v1/users", manager.Token, nil, nil); code != http.StatusForbidden {
		t.Fatalf("manager list users status = %d, want 403", code)
	}

	var refreshed models.AuthResponse
	if code := api.do("POST", "/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: manager.RefreshToken}, &refreshed); code != http.StatusOK {
		t.Fatalf("refresh status = %d", code)
	}
	if refreshed.Token == "" || refreshed.User.Username != "manager" {
		t.Fatalf("unexpected refresh response %+v", refreshed)
	}
	if code := api.do("POST", "/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: manager.Token}, nil); code != http.StatusUnauthorized {
		t.Fatalf("refresh with access token status = %d", code)
	}
}

func TestPartnersAndHealth(t *testing.T) {
	api := newAPI(t)
	admin := api.login("admin", "admin1")

	var partner models.Partner
	name := "Green Mart"
	if code := api.do("POST", "/api/v1/admin/partners", admin.Token, models.PartnerRequest{Name: &name}, &partner); code != http.StatusCreated {
		t.Fatalf("create partner status = %d", code)
	}
	if code := api.do("POST", "/api/v1/admin/partners", admin.Token, models.PartnerRequest{Name: &name}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate partner status = %d", code)
	}

	var names []models.PartnerName
	if code := api.do("GET", "/api/v1/partners/names", "", nil, &names); code != http.StatusOK || len(names) != 1 {
		t.Fatalf("names = %d %+v", code, names)
	}
	if code := api.do("DELETE", "/api/v1/admin/partners/"+partner.ID, admin.Token, nil, nil); code != http.StatusOK {
		t.Fatalf("delete partner status = %d", code)
	}
	var active []models.Partner
	api.do("GET", "/api/v1/partners", "", nil, &active)
	if len(active) != 0 {
		t.Fatalf("inactive partner still listed: %+v", active)
	}

	var health map[string]string
	if code := api.do("GET", "/health", "", nil, &health); code != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("health = %d %+v", code, health)
	}
}
