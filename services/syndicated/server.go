package syndicated

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tokensyndicate/crypto"
	"tokensyndicate/native/common"
	"tokensyndicate/native/syndicate"
	"tokensyndicate/observability"
	telemetry "tokensyndicate/observability/otel"
)

const (
	maxRequestBody  = 1 << 20
	headerRequestID = "X-Request-ID"
)

type ctxKey int

const requestIDKey ctxKey = iota

// Server exposes the factory and ledger operations over HTTP.
type Server struct {
	svc     *Service
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
	tracer  trace.Tracer
	router  http.Handler
}

// NewServer constructs the HTTP API for svc.
func NewServer(svc *Service, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:     svc,
		auth:    NewAuthenticator(cfg.Auth, logger),
		limiter: NewRateLimiter(cfg.RateLimit),
		logger:  logger,
		tracer:  telemetry.Tracer("syndicated"),
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)
	r.Use(s.limiter.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Get("/syndicates", s.listSyndicates)
		api.Get("/syndicates/{id}", s.getSyndicate)
		api.Get("/syndicates/{id}/depositors", s.listDepositors)
		api.Get("/syndicates/{id}/depositors/{addr}", s.getDepositor)
		api.Get("/tokens", s.listTokens)
		api.Get("/tokens/{addr}/balances/{holder}", s.tokenBalance)
		api.Get("/events", s.listEvents)

		api.Group(func(protected chi.Router) {
			protected.Use(s.auth.Middleware)
			protected.Post("/syndicates", s.createSyndicate)
			protected.Post("/syndicates/{id}/deposit", s.deposit)
			protected.Post("/syndicates/{id}/donate", s.donate)
			protected.Post("/syndicates/{id}/purchase", s.purchase)
			protected.Post("/syndicates/{id}/refund", s.refund)
			protected.Post("/syndicates/{id}/withdraw-tokens", s.withdrawTokens)
			protected.Post("/syndicates/{id}/withdraw-bounty", s.withdrawBounty)
			protected.Get("/admin/pause", s.getPause)
			protected.Post("/admin/pause", s.setPause)
		})
	})
	return otelhttp.NewHandler(r, "syndicated")
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		observability.ModuleMetrics().Observe(ModuleName, r.Method+" "+route, recorder.status, time.Since(start))
		if recorder.status >= http.StatusInternalServerError {
			s.logger.Error("request failed",
				slog.String("method", r.Method),
				slog.String("path", route),
				slog.Int("status", recorder.status),
				slog.String("request_id", requestIDFrom(r.Context())))
		}
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, syndicate.ErrInvalidInput), errors.Is(err, syndicate.ErrConfiguration):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, syndicate.ErrCapacityExceeded):
		return http.StatusConflict, "capacity_exceeded"
	case errors.Is(err, syndicate.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, syndicate.ErrPrincipalMismatch):
		return http.StatusForbidden, "principal_mismatch"
	case errors.Is(err, syndicate.ErrAlreadySettled):
		return http.StatusConflict, "already_settled"
	case errors.Is(err, syndicate.ErrCollaborator):
		return http.StatusBadGateway, "token_failure"
	case errors.Is(err, common.ErrModulePaused):
		return http.StatusServiceUnavailable, "paused"
	case errors.Is(err, common.ErrQuotaRequestsExceeded), errors.Is(err, common.ErrQuotaValueCapExceeded), errors.Is(err, common.ErrQuotaCounterOverflow):
		return http.StatusTooManyRequests, "quota_exceeded"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	switch code {
	case "quota_exceeded":
		observability.ModuleMetrics().RecordThrottle(ModuleName, "quota_exceeded")
	case "paused":
		observability.ModuleMetrics().RecordThrottle(ModuleName, "paused")
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("operation failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("error", err.Error()))
	}
	writeError(w, status, code, err.Error())
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	if err := dec.Decode(out); err != nil {
		return errors.Join(syndicate.ErrInvalidInput, err)
	}
	return nil
}

func parseAddressField(name, raw string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, errors.Join(syndicate.ErrInvalidInput, errors.New(name+": "+err.Error()))
	}
	return addr, nil
}

func parseOptionalAddress(name, raw string) ([20]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return [20]byte{}, nil
	}
	return parseAddressField(name, raw)
}

func parseAmount(name, raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, errors.Join(syndicate.ErrInvalidInput, errors.New(name+": expected a base-10 integer"))
	}
	return value, nil
}

func (s *Server) ledgerFrom(r *http.Request) (*syndicate.Ledger, error) {
	addr, err := parseAddressField("syndicate", chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	ledger, ok := s.svc.Ledger(addr)
	if !ok {
		return nil, errNotFound
	}
	return ledger, nil
}

var errNotFound = errors.New("syndicate not found")

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*syndicate.Ledger, bool) {
	ledger, err := s.ledgerFrom(r)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return nil, false
	}
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return ledger, true
}

type syndicateView struct {
	Address               string `json:"address"`
	Creator               string `json:"creator"`
	Token                 string `json:"token"`
	ExchangeRate          uint64 `json:"exchangeRate"`
	BountyRatePerThousand uint32 `json:"bountyRatePerThousand"`
	MaxPoolCapacity       string `json:"maxPoolCapacity"`
	RefundEligibleFrom    uint64 `json:"refundEligibleFrom"`
	CreatedAt             uint64 `json:"createdAt"`
	Status                string `json:"status"`
	TotalNetPresale       string `json:"totalNetPresale"`
	TotalBounty           string `json:"totalBounty"`
	TotalDeposited        string `json:"totalDeposited"`
	Held                  string `json:"held"`
	Winner                string `json:"winner,omitempty"`
	PurchasedUnits        string `json:"purchasedUnits"`
	TokensDistributed     string `json:"tokensDistributed"`
	BountyWithdrawn       bool   `json:"bountyWithdrawn"`
	Depositors            int    `json:"depositors"`
}

func newSyndicateView(ledger *syndicate.Ledger) syndicateView {
	snap := ledger.Snapshot()
	cfg, pool := snap.Config, snap.Pool
	view := syndicateView{
		Address:               crypto.FormatAddress(cfg.Address),
		Creator:               crypto.FormatAddress(cfg.Creator),
		Token:                 crypto.FormatAddress(cfg.Token),
		ExchangeRate:          cfg.ExchangeRate,
		BountyRatePerThousand: cfg.BountyRatePerThousand,
		MaxPoolCapacity:       cfg.MaxPoolCapacity.String(),
		RefundEligibleFrom:    cfg.RefundEligibleFrom,
		CreatedAt:             cfg.CreatedAt,
		Status:                pool.Status.String(),
		TotalNetPresale:       pool.TotalNetPresale.String(),
		TotalBounty:           pool.TotalBounty.String(),
		TotalDeposited:        pool.TotalDeposited.String(),
		Held:                  pool.Held.String(),
		PurchasedUnits:        pool.PurchasedUnits.String(),
		TokensDistributed:     pool.TokensDistributed.String(),
		BountyWithdrawn:       pool.BountyWithdrawn,
		Depositors:            snap.Depositors,
	}
	if pool.WinnerSet {
		view.Winner = crypto.FormatAddress(pool.Winner)
	}
	return view
}

type recordView struct {
	Syndicate   string `json:"syndicate"`
	Address     string `json:"address"`
	NetPresale  string `json:"netPresale"`
	Bounty      string `json:"bounty"`
	Settled     bool   `json:"settled"`
	Settlement  string `json:"settlement"`
	Entitlement string `json:"entitlement"`
}

func newRecordView(ledger *syndicate.Ledger, rec *syndicate.DepositorRecord) recordView {
	return recordView{
		Syndicate:   crypto.FormatAddress(ledger.Address()),
		Address:     crypto.FormatAddress(rec.Address),
		NetPresale:  rec.NetPresale.String(),
		Bounty:      rec.Bounty.String(),
		Settled:     rec.Settled,
		Settlement:  rec.Settlement.String(),
		Entitlement: ledger.TokenEntitlement(rec.Address).String(),
	}
}

type createRequest struct {
	Creator               string `json:"creator"`
	Token                 string `json:"token"`
	ExchangeRate          uint64 `json:"exchangeRate"`
	BountyRatePerThousand uint32 `json:"bountyRatePerThousand"`
	MaxPoolCapacity       string `json:"maxPoolCapacity"`
	RefundEligibleFrom    uint64 `json:"refundEligibleFrom"`
}

func (s *Server) createSyndicate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	creator, err := parseAddressField("creator", req.Creator)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := parseAddressField("token", req.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	capacity, err := parseAmount("maxPoolCapacity", req.MaxPoolCapacity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ledger, err := s.svc.CreateSyndicate(creator, syndicate.Params{
		Token:                 token,
		ExchangeRate:          req.ExchangeRate,
		BountyRatePerThousand: req.BountyRatePerThousand,
		MaxPoolCapacity:       capacity,
		RefundEligibleFrom:    req.RefundEligibleFrom,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("syndicate created",
		slog.String("syndicate", crypto.FormatAddress(ledger.Address())),
		slog.String("request_id", requestIDFrom(r.Context())))
	writeJSON(w, http.StatusCreated, newSyndicateView(ledger))
}

func (s *Server) listSyndicates(w http.ResponseWriter, _ *http.Request) {
	ledgers := s.svc.Ledgers()
	out := make([]syndicateView, 0, len(ledgers))
	for _, ledger := range ledgers {
		out = append(out, newSyndicateView(ledger))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSyndicate(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSyndicateView(ledger))
}

func (s *Server) listDepositors(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.lookup(w, r)
	if !ok {
		return
	}
	addrs := ledger.Depositors()
	out := make([]recordView, 0, len(addrs))
	for _, addr := range addrs {
		if rec, found := ledger.Record(addr); found {
			out = append(out, newRecordView(ledger, rec))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getDepositor(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.lookup(w, r)
	if !ok {
		return
	}
	addr, err := parseAddressField("depositor", chi.URLParam(r, "addr"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, found := ledger.Record(addr)
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "no record for depositor")
		return
	}
	writeJSON(w, http.StatusOK, newRecordView(ledger, rec))
}

type contributionRequest struct {
	Depositor             string `json:"depositor"`
	Amount                string `json:"amount"`
	BountyRatePerThousand uint32 `json:"bountyRatePerThousand,omitempty"`
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.contribute(w, r, false)
}

func (s *Server) donate(w http.ResponseWriter, r *http.Request) {
	s.contribute(w, r, true)
}

func (s *Server) contribute(w http.ResponseWriter, r *http.Request, donation bool) {
	ledger, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req contributionRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	principal, err := parseAddressField("depositor", req.Depositor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.guard(); err != nil {
		s.fail(w, r, err)
		return
	}
	release, err := s.svc.reserve(principal, amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var rec *syndicate.DepositorRecord
	switch {
	case donation:
		rec, err = ledger.Donate(principal, amount)
	case req.BountyRatePerThousand != 0:
		rec, err = ledger.DepositWithBountyRate(principal, amount, req.BountyRatePerThousand)
	default:
		rec, err = ledger.Deposit(principal, amount)
	}
	if err != nil {
		release()
		s.fail(w, r, err)
		return
	}
	s.svc.recordCapacity(ledger)
	writeJSON(w, http.StatusOK, newRecordView(ledger, rec))
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type purchaseResponse struct {
	Syndicate string `json:"syndicate"`
	Winner    string `json:"winner"`
	Units     string `json:"units"`
}

func (s *Server) purchase(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.guard(); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx, span := s.tracer.Start(r.Context(), "syndicate.purchase", trace.WithAttributes(
		attribute.String("syndicate", crypto.FormatAddress(ledger.Address())),
	))
	units, err := ledger.TriggerPurchase(ctx, caller)
	if err != nil {
		span.RecordError(err)
		span.End()
		s.fail(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("units", units.String()))
	span.End()
	s.logger.Info("purchase completed",
		slog.String("syndicate", crypto.FormatAddress(ledger.Address())),
		slog.String("request_id", requestIDFrom(r.Context())))
	writeJSON(w, http.StatusOK, purchaseResponse{
		Syndicate: crypto.FormatAddress(ledger.Address()),
		Winner:    crypto.FormatAddress(caller),
		Units:     units.String(),
	})
}

type settlementRequest struct {
	Depositor string `json:"depositor"`
	Recipient string `json:"recipient,omitempty"`
}

type amountResponse struct {
	Syndicate string `json:"syndicate"`
	Principal string `json:"principal"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount"`
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req settlementRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	depositor, err := parseAddressField("depositor", req.Depositor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.guard(); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := ledger.Refund(depositor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.svc.recordCapacity(ledger)
	writeJSON(w, http.StatusOK, amountResponse{
		Syndicate: crypto.FormatAddress(ledger.Address()),
		Principal: crypto.FormatAddress(depositor),
		Amount:    amount.String(),
	})
}

func (s *Server) withdrawTokens(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req settlementRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	depositor, err := parseAddressField("depositor", req.Depositor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recipient, err := parseOptionalAddress("recipient", req.Recipient)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.guard(); err != nil {
		s.fail(w, r, err)
		return
	}
	units, err := ledger.WithdrawTokens(r.Context(), depositor, recipient)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if recipient == ([20]byte{}) {
		recipient = depositor
	}
	writeJSON(w, http.StatusOK, amountResponse{
		Syndicate: crypto.FormatAddress(ledger.Address()),
		Principal: crypto.FormatAddress(depositor),
		Recipient: crypto.FormatAddress(recipient),
		Amount:    units.String(),
	})
}

func (s *Server) withdrawBounty(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	caller, err := parseAddressField("caller", req.Caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.guard(); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := ledger.WithdrawBounty(caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{
		Syndicate: crypto.FormatAddress(ledger.Address()),
		Principal: crypto.FormatAddress(caller),
		Amount:    amount.String(),
	})
}

type tokenView struct {
	Address      string `json:"address"`
	ExchangeRate uint64 `json:"exchangeRate"`
	SupplyCap    string `json:"supplyCap"`
	TotalSupply  string `json:"totalSupply"`
	Raised       string `json:"raised"`
	FundingStart uint64 `json:"fundingStart"`
	FundingEnd   uint64 `json:"fundingEnd"`
}

func (s *Server) listTokens(w http.ResponseWriter, _ *http.Request) {
	out := make([]tokenView, 0, len(s.svc.tokens))
	for _, token := range s.svc.tokens {
		params := token.Params()
		out = append(out, tokenView{
			Address:      crypto.FormatAddress(params.Address),
			ExchangeRate: params.ExchangeRate,
			SupplyCap:    params.SupplyCap.String(),
			TotalSupply:  token.TotalSupply().String(),
			Raised:       token.Raised().String(),
			FundingStart: params.FundingStart,
			FundingEnd:   params.FundingEnd,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) tokenBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddressField("token", chi.URLParam(r, "addr"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	holder, err := parseAddressField("holder", chi.URLParam(r, "holder"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, ok := s.svc.Token(addr)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "token not hosted")
		return
	}
	balance, err := token.BalanceOf(r.Context(), holder)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":   crypto.FormatAddress(addr),
		"holder":  crypto.FormatAddress(holder),
		"balance": balance.String(),
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, s.svc.Journal().List(r.URL.Query().Get("type"), limit))
}

type pauseRequest struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) getPause(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"paused": s.svc.Paused()})
}

func (s *Server) setPause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	module := strings.TrimSpace(req.Module)
	if module == "" {
		module = ModuleName
	}
	s.svc.SetPaused(module, req.Paused)
	writeJSON(w, http.StatusOK, map[string][]string{"paused": s.svc.Paused()})
}
