package syndicated

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"tokensyndicate/core/events"
	"tokensyndicate/core/state"
	"tokensyndicate/crypto"
	"tokensyndicate/native/common"
	"tokensyndicate/native/presale"
	"tokensyndicate/native/syndicate"
	"tokensyndicate/observability"
	"tokensyndicate/storage"
)

// ModuleName identifies the syndicate module for the pause guard.
const ModuleName = "syndicate"

// Service wires the factory, its ledgers and the hosted presale tokens to
// persistence, events and metrics.
type Service struct {
	factory  *syndicate.Factory
	registry *syndicate.Registry
	tokens   map[[20]byte]*presale.Token
	journal  *events.Journal
	pauses   *common.Pauses
	quota    *common.QuotaTracker
	metrics  *observability.SyndicateMetrics
	logger   *slog.Logger
	db       storage.Database
	nowFn    func() time.Time
}

// DefaultFactoryAddress is used when no factory address is configured.
func DefaultFactoryAddress() [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("syndicated/factory"))[12:])
	return addr
}

// NewService opens storage, restores every persisted ledger and returns a
// ready service. db may be nil, in which case the configured data directory
// (or an in-memory store when none is set) is used.
func NewService(ctx context.Context, cfg Config, db storage.Database, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if db == nil {
		var err error
		db, err = openDatabase(cfg.DataDir)
		if err != nil {
			return nil, err
		}
	}
	kv := state.NewKVStore(db)
	s := &Service{
		registry: syndicate.NewRegistry(),
		tokens:   make(map[[20]byte]*presale.Token, len(cfg.Tokens)),
		journal:  events.NewJournal(cfg.JournalSize),
		pauses:   common.NewPauses(),
		metrics:  observability.Syndicate(),
		logger:   logger,
		db:       db,
		nowFn:    time.Now,
	}
	s.quota = common.NewQuotaTracker(common.Quota{
		MaxRequestsPerEpoch: cfg.Quota.MaxRequestsPerEpoch,
		MaxValuePerEpoch:    cfg.Quota.MaxValuePerEpoch,
		EpochSeconds:        cfg.Quota.EpochSeconds,
	}, s.height)
	if cfg.PauseOnStart {
		s.SetPaused(ModuleName, true)
	}

	emitter := events.Multi{s.journal, observability.EventMetrics(s.metrics), events.EmitterFunc(s.logEvent)}

	resolver := syndicate.StaticResolver{}
	for _, tc := range cfg.Tokens {
		token, err := newPresaleToken(tc)
		if err != nil {
			db.Close()
			return nil, err
		}
		token.SetEmitter(emitter)
		token.SetHeightFunc(s.height)
		if err := token.SetStore(kv); err != nil {
			db.Close()
			return nil, err
		}
		s.tokens[token.Address()] = token
		resolver[token.Address()] = token
	}

	factoryAddr := DefaultFactoryAddress()
	if raw := strings.TrimSpace(cfg.FactoryAddress); raw != "" {
		parsed, err := crypto.ParseAddress(raw)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("factory address: %w", err)
		}
		factoryAddr = parsed
	}
	s.factory = syndicate.NewFactory(factoryAddr)
	s.factory.SetTokenResolver(resolver)
	s.factory.SetStore(syndicate.NewStore(kv))
	s.factory.SetEmitter(emitter)
	s.factory.SetHeightFunc(s.height)

	restored, err := s.factory.Restore(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("restore syndicates: %w", err)
	}
	s.registry.Register(restored...)
	for _, ledger := range restored {
		s.recordCapacity(ledger)
	}
	logger.Info("syndicates restored",
		slog.Int("count", len(restored)),
		slog.String("factory", crypto.FormatAddress(factoryAddr)),
		slog.Int("tokens", len(s.tokens)))
	return s, nil
}

func openDatabase(dir string) (storage.Database, error) {
	if strings.TrimSpace(dir) == "" {
		return storage.NewMemDB(), nil
	}
	db, err := storage.NewLevelDB(filepath.Join(dir, "syndicated"))
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return db, nil
}

func newPresaleToken(tc TokenConfig) (*presale.Token, error) {
	addr, err := crypto.ParseAddress(tc.Address)
	if err != nil {
		return nil, fmt.Errorf("token address: %w", err)
	}
	supply, ok := new(big.Int).SetString(strings.TrimSpace(tc.SupplyCap), 10)
	if !ok {
		return nil, fmt.Errorf("token %s: invalid supply cap %q", tc.Address, tc.SupplyCap)
	}
	return presale.NewToken(presale.Params{
		Address:      addr,
		ExchangeRate: tc.ExchangeRate,
		SupplyCap:    supply,
		FundingStart: tc.FundingStart,
		FundingEnd:   tc.FundingEnd,
	})
}

// height is the daemon's notion of block height: unix seconds.
func (s *Service) height() uint64 {
	return uint64(s.nowFn().Unix())
}

func (s *Service) logEvent(evt events.Event) {
	if evt == nil {
		return
	}
	attrs := []any{slog.String("type", evt.EventType())}
	if payload, ok := evt.(events.Payload); ok && payload.Event() != nil {
		if pool := payload.Event().Attr("syndicate"); pool != "" {
			attrs = append(attrs, slog.String("syndicate", pool))
		}
	}
	s.logger.Debug("event emitted", attrs...)
}

func (s *Service) recordCapacity(ledger *syndicate.Ledger) {
	snap := ledger.Snapshot()
	if snap == nil {
		return
	}
	s.metrics.RecordCapacity(crypto.FormatAddress(snap.Config.Address), snap.Pool.TotalDeposited, snap.Config.MaxPoolCapacity)
}

// CreateSyndicate deploys a ledger and registers it.
func (s *Service) CreateSyndicate(creator [20]byte, params syndicate.Params) (*syndicate.Ledger, error) {
	if err := common.Guard(s.pauses, ModuleName); err != nil {
		return nil, err
	}
	ledger, err := s.factory.CreateSyndicate(creator, params)
	if err != nil {
		return nil, err
	}
	s.registry.Register(ledger)
	s.recordCapacity(ledger)
	return ledger, nil
}

// Ledger returns the registered ledger at addr.
func (s *Service) Ledger(addr [20]byte) (*syndicate.Ledger, bool) {
	return s.registry.Get(addr)
}

// Ledgers lists every registered ledger in creation order.
func (s *Service) Ledgers() []*syndicate.Ledger {
	return s.registry.List()
}

// Token returns the hosted presale token at addr.
func (s *Service) Token(addr [20]byte) (*presale.Token, bool) {
	token, ok := s.tokens[addr]
	return token, ok
}

// Journal exposes the event journal.
func (s *Service) Journal() *events.Journal { return s.journal }

// Factory exposes the ledger factory.
func (s *Service) Factory() *syndicate.Factory { return s.factory }

// SetPaused toggles the pause guard for module.
func (s *Service) SetPaused(module string, paused bool) {
	s.pauses.Set(module, paused)
	if module == ModuleName {
		s.metrics.SetPause(paused)
	}
	s.logger.Warn("pause toggled", slog.String("component", module), slog.Bool("paused", paused))
}

// Paused lists the paused modules.
func (s *Service) Paused() []string { return s.pauses.List() }

// guard rejects mutations while the module is paused.
func (s *Service) guard() error {
	return common.Guard(s.pauses, ModuleName)
}

// reserve applies the per-principal quota to a contribution. The returned
// release hands the quota back when the ledger rejects the contribution.
func (s *Service) reserve(principal [20]byte, amount *big.Int) (func(), error) {
	value := uint64(0)
	if amount != nil && amount.Sign() > 0 {
		if amount.IsUint64() {
			value = amount.Uint64()
		} else {
			value = ^uint64(0)
		}
	}
	return s.quota.Reserve(principal, value)
}

// Close releases the underlying database.
func (s *Service) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}
