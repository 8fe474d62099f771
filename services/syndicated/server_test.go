package syndicated

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tokensyndicate/core/events"
	"tokensyndicate/crypto"
	"tokensyndicate/storage"
)

const (
	operatorToken = "operator-secret"
	testTokenHex  = "0x7070707070707070707070707070707070707070"
	aliceHex      = "0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
	bobHex        = "0xb2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2"
)

var testNow = time.Unix(1_700_000_000, 0)

func testConfig() Config {
	cfg := Config{
		Auth:      AuthConfig{BearerToken: operatorToken},
		RateLimit: RateLimitConfig{RequestsPerMinute: 60_000, Burst: 1_000},
		Tokens: []TokenConfig{{
			Address:      testTokenHex,
			ExchangeRate: 6400,
			SupplyCap:    "1000000000000",
			FundingStart: 0,
			FundingEnd:   4_102_444_800,
		}},
	}
	applyDefaults(&cfg)
	return cfg
}

type testServer struct {
	svc     *Service
	handler http.Handler
}

func newTestServer(t *testing.T, db storage.Database, mutate func(*Config)) *testServer {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	if db == nil {
		db = storage.NewMemDB()
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc, err := NewService(context.Background(), cfg, db, logger)
	require.NoError(t, err)
	svc.nowFn = func() time.Time { return testNow }
	return &testServer{svc: svc, handler: NewServer(svc, cfg, logger)}
}

func (s *testServer) do(t *testing.T, method, path string, body any, authorized bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if authorized {
		req.Header.Set("Authorization", "Bearer "+operatorToken)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createPool(t *testing.T, capacity string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/syndicates", map[string]any{
		"creator":               aliceHex,
		"token":                 testTokenHex,
		"exchangeRate":          6400,
		"bountyRatePerThousand": 250,
		"maxPoolCapacity":       capacity,
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[syndicateView](t, rec).Address
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	require.Equal(t, code, decode[errorResponse](t, rec).Code)
}

func TestPurchaseLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	pool := srv.createPool(t, "1000000")
	base := "/v1/syndicates/" + pool

	rec := srv.do(t, http.MethodPost, base+"/deposit", map[string]any{"depositor": aliceHex, "amount": "1100"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deposit := decode[recordView](t, rec)
	require.Equal(t, "825", deposit.NetPresale)
	require.Equal(t, "275", deposit.Bounty)
	require.Equal(t, "5280000", deposit.Entitlement)

	rec = srv.do(t, http.MethodPost, base+"/purchase", map[string]any{"caller": bobHex}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "5280000", decode[purchaseResponse](t, rec).Units)

	view := decode[syndicateView](t, srv.do(t, http.MethodGet, base, nil, false))
	require.Equal(t, "winner_determined", view.Status)
	require.Equal(t, "275", view.Held)
	bob, err := crypto.ParseAddress(bobHex)
	require.NoError(t, err)
	require.Equal(t, crypto.FormatAddress(bob), view.Winner)

	rec = srv.do(t, http.MethodPost, base+"/purchase", map[string]any{"caller": aliceHex}, true)
	requireErrorCode(t, rec, http.StatusConflict, "invalid_state")

	rec = srv.do(t, http.MethodPost, base+"/withdraw-tokens", map[string]any{"depositor": aliceHex}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "5280000", decode[amountResponse](t, rec).Amount)

	rec = srv.do(t, http.MethodGet, "/v1/tokens/"+testTokenHex+"/balances/"+aliceHex, nil, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "5280000", decode[map[string]string](t, rec)["balance"])

	rec = srv.do(t, http.MethodPost, base+"/withdraw-bounty", map[string]any{"caller": aliceHex}, true)
	requireErrorCode(t, rec, http.StatusForbidden, "principal_mismatch")
	rec = srv.do(t, http.MethodPost, base+"/withdraw-bounty", map[string]any{"caller": bobHex}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "275", decode[amountResponse](t, rec).Amount)
	rec = srv.do(t, http.MethodPost, base+"/withdraw-bounty", map[string]any{"caller": bobHex}, true)
	requireErrorCode(t, rec, http.StatusConflict, "already_settled")

	records := decode[[]events.Record](t, srv.do(t, http.MethodGet, "/v1/events?type=syndicate.", nil, false))
	types := make([]string, 0, len(records))
	for _, r := range records {
		types = append(types, r.Type)
	}
	require.Equal(t, []string{
		"syndicate.created",
		"syndicate.deposit",
		"syndicate.purchase",
		"syndicate.tokens_withdrawn",
		"syndicate.bounty_withdrawn",
	}, types)

	limited := decode[[]events.Record](t, srv.do(t, http.MethodGet, "/v1/events?limit=1", nil, false))
	require.Len(t, limited, 1)
	require.Equal(t, "syndicate.bounty_withdrawn", limited[0].Type)
}

func TestRefundOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	pool := srv.createPool(t, "1000000")
	base := "/v1/syndicates/" + pool

	rec := srv.do(t, http.MethodPost, base+"/deposit", map[string]any{"depositor": aliceHex, "amount": "1100", "bountyRatePerThousand": 500}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "550", decode[recordView](t, rec).Bounty)

	rec = srv.do(t, http.MethodPost, base+"/refund", map[string]any{"depositor": bobHex}, true)
	requireErrorCode(t, rec, http.StatusForbidden, "principal_mismatch")

	rec = srv.do(t, http.MethodPost, base+"/refund", map[string]any{"depositor": aliceHex}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "1100", decode[amountResponse](t, rec).Amount)

	rec = srv.do(t, http.MethodGet, base+"/depositors/"+aliceHex, nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	record := decode[recordView](t, rec)
	require.True(t, record.Settled)
	require.Equal(t, "refund", record.Settlement)

	rec = srv.do(t, http.MethodPost, base+"/deposit", map[string]any{"depositor": aliceHex, "amount": "10"}, true)
	requireErrorCode(t, rec, http.StatusConflict, "already_settled")
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	pool := srv.createPool(t, "1000")
	base := "/v1/syndicates/" + pool

	cases := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{name: "malformed amount", path: base + "/deposit", body: map[string]any{"depositor": aliceHex, "amount": "1.5"}, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "zero amount", path: base + "/deposit", body: map[string]any{"depositor": aliceHex, "amount": "0"}, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "bad address", path: base + "/deposit", body: map[string]any{"depositor": "nobody", "amount": "5"}, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "over capacity", path: base + "/deposit", body: map[string]any{"depositor": aliceHex, "amount": "1001"}, status: http.StatusConflict, code: "capacity_exceeded"},
		{name: "bounty rate below minimum", path: base + "/deposit", body: map[string]any{"depositor": aliceHex, "amount": "10", "bountyRatePerThousand": 100}, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "purchase with empty pool", path: base + "/purchase", body: map[string]any{"caller": aliceHex}, status: http.StatusConflict, code: "invalid_state"},
		{name: "withdraw before purchase", path: base + "/withdraw-tokens", body: map[string]any{"depositor": aliceHex}, status: http.StatusConflict, code: "invalid_state"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireErrorCode(t, srv.do(t, http.MethodPost, tc.path, tc.body, true), tc.status, tc.code)
		})
	}

	rec := srv.do(t, http.MethodPost, "/v1/syndicates", map[string]any{
		"creator": aliceHex, "token": testTokenHex, "exchangeRate": 6400, "bountyRatePerThousand": 1000, "maxPoolCapacity": "10",
	}, true)
	requireErrorCode(t, rec, http.StatusBadRequest, "invalid_input")

	rec = srv.do(t, http.MethodGet, "/v1/syndicates/"+bobHex, nil, false)
	requireErrorCode(t, rec, http.StatusNotFound, "not_found")
}

func TestPurchaseOutsideFundingWindowIsBadGateway(t *testing.T) {
	srv := newTestServer(t, nil, func(cfg *Config) {
		cfg.Tokens[0].FundingEnd = uint64(testNow.Unix()) - 1
	})
	pool := srv.createPool(t, "1000000")
	base := "/v1/syndicates/" + pool
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, base+"/deposit", map[string]any{"depositor": aliceHex, "amount": "1100"}, true).Code)

	rec := srv.do(t, http.MethodPost, base+"/purchase", map[string]any{"caller": bobHex}, true)
	requireErrorCode(t, rec, http.StatusBadGateway, "token_failure")
	view := decode[syndicateView](t, srv.do(t, http.MethodGet, base, nil, false))
	require.Equal(t, "open", view.Status)
	require.Empty(t, view.Winner)
}

func TestMutationsRequireBearerToken(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	rec := srv.do(t, http.MethodPost, "/v1/syndicates", map[string]any{}, false)
	requireErrorCode(t, rec, http.StatusUnauthorized, "unauthorized")

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/pause", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp := httptest.NewRecorder()
	srv.handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/v1/syndicates", nil, false).Code)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/healthz", nil, false).Code)
}

func TestPauseBlocksMutations(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	pool := srv.createPool(t, "1000000")
	base := "/v1/syndicates/" + pool

	rec := srv.do(t, http.MethodPost, "/v1/admin/pause", map[string]any{"paused": true}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{ModuleName}, decode[map[string][]string](t, rec)["paused"])

	requireErrorCode(t, srv.do(t, http.MethodPost, base+"/deposit", map[string]any{"depositor": aliceHex, "amount": "10"}, true), http.StatusServiceUnavailable, "paused")
	requireErrorCode(t, srv.do(t, http.MethodPost, "/v1/syndicates", map[string]any{
		"creator": aliceHex, "token": testTokenHex, "exchangeRate": 6400, "bountyRatePerThousand": 250, "maxPoolCapacity": "10",
	}, true), http.StatusServiceUnavailable, "paused")
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, base, nil, false).Code)

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/v1/admin/pause", map[string]any{"paused": false}, true).Code)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, base+"/deposit", map[string]any{"depositor": aliceHex, "amount": "10"}, true).Code)
}

func TestQuotaLimitsContributionsPerPrincipal(t *testing.T) {
	srv := newTestServer(t, nil, func(cfg *Config) {
		cfg.Quota.MaxRequestsPerEpoch = 2
	})
	pool := srv.createPool(t, "1000000")
	path := "/v1/syndicates/" + pool + "/deposit"
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, path, map[string]any{"depositor": aliceHex, "amount": "10"}, true).Code)
	}
	requireErrorCode(t, srv.do(t, http.MethodPost, path, map[string]any{"depositor": aliceHex, "amount": "10"}, true), http.StatusTooManyRequests, "quota_exceeded")
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, path, map[string]any{"depositor": bobHex, "amount": "10"}, true).Code)

	srv.svc.nowFn = func() time.Time { return testNow.Add(2 * time.Minute) }
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, path, map[string]any{"depositor": aliceHex, "amount": "10"}, true).Code)
}

func TestRejectedContributionDoesNotConsumeQuota(t *testing.T) {
	srv := newTestServer(t, nil, func(cfg *Config) {
		cfg.Quota.MaxValuePerEpoch = 1000
	})
	pool := srv.createPool(t, "500")
	path := "/v1/syndicates/" + pool + "/deposit"

	requireErrorCode(t, srv.do(t, http.MethodPost, path, map[string]any{"depositor": aliceHex, "amount": "600"}, true), http.StatusConflict, "capacity_exceeded")
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, path, map[string]any{"depositor": aliceHex, "amount": "450"}, true).Code)
	requireErrorCode(t, srv.do(t, http.MethodPost, path, map[string]any{"depositor": aliceHex, "amount": "51"}, true), http.StatusConflict, "capacity_exceeded")
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, path, map[string]any{"depositor": aliceHex, "amount": "50"}, true).Code)

	second := srv.createPool(t, "1000000")
	requireErrorCode(t, srv.do(t, http.MethodPost, "/v1/syndicates/"+second+"/deposit", map[string]any{"depositor": aliceHex, "amount": "501"}, true), http.StatusTooManyRequests, "quota_exceeded")
}

func TestServiceRestartRestoresLedgers(t *testing.T) {
	db := storage.NewMemDB()
	first := newTestServer(t, db, nil)
	pool := first.createPool(t, "1000000")
	base := "/v1/syndicates/" + pool
	require.Equal(t, http.StatusOK, first.do(t, http.MethodPost, base+"/deposit", map[string]any{"depositor": aliceHex, "amount": "1100"}, true).Code)
	require.Equal(t, http.StatusOK, first.do(t, http.MethodPost, base+"/purchase", map[string]any{"caller": bobHex}, true).Code)

	second := newTestServer(t, db, nil)
	view := decode[syndicateView](t, second.do(t, http.MethodGet, base, nil, false))
	require.Equal(t, "winner_determined", view.Status)
	require.Equal(t, "5280000", view.PurchasedUnits)
	require.Equal(t, uint64(1), second.svc.Factory().Nonce())

	rec := second.do(t, http.MethodPost, base+"/withdraw-tokens", map[string]any{"depositor": aliceHex, "recipient": bobHex}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = second.do(t, http.MethodGet, "/v1/tokens/"+testTokenHex+"/balances/"+bobHex, nil, false)
	require.Equal(t, "5280000", decode[map[string]string](t, rec)["balance"])

	next := second.createPool(t, "10")
	require.NotEqual(t, pool, next)
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "req-123")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	require.Equal(t, "req-123", rec.Header().Get(headerRequestID))

	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestListingEndpoints(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	pool := srv.createPool(t, "1000000")
	base := "/v1/syndicates/" + pool
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, base+"/deposit", map[string]any{"depositor": aliceHex, "amount": "1100"}, true).Code)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, base+"/donate", map[string]any{"depositor": bobHex, "amount": "50"}, true).Code)

	records := decode[[]recordView](t, srv.do(t, http.MethodGet, base+"/depositors", nil, false))
	require.Len(t, records, 2)
	require.Equal(t, "825", records[0].NetPresale)
	require.Equal(t, "0", records[1].NetPresale)
	require.Equal(t, "50", records[1].Bounty)
	require.Equal(t, "0", records[1].Entitlement)

	pools := decode[[]syndicateView](t, srv.do(t, http.MethodGet, "/v1/syndicates", nil, false))
	require.Len(t, pools, 1)
	require.Equal(t, "1150", pools[0].TotalDeposited)
	require.Equal(t, 2, pools[0].Depositors)

	tokens := decode[[]tokenView](t, srv.do(t, http.MethodGet, "/v1/tokens", nil, false))
	require.Len(t, tokens, 1)
	require.Equal(t, uint64(6400), tokens[0].ExchangeRate)
	require.Equal(t, "0", tokens[0].TotalSupply)

	rec := srv.do(t, http.MethodGet, "/v1/tokens/"+bobHex+"/balances/"+aliceHex, nil, false)
	requireErrorCode(t, rec, http.StatusNotFound, "not_found")
}
