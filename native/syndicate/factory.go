package syndicate

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"tokensyndicate/core/events"
)

// ValidateParams checks creation parameters without side effects.
func ValidateParams(p Params) error {
	if isZeroAddress(p.Token) {
		return fmt.Errorf("%w: token contract address is zero", ErrConfiguration)
	}
	if p.ExchangeRate == 0 {
		return fmt.Errorf("%w: exchange rate must be positive", ErrConfiguration)
	}
	if p.BountyRatePerThousand == 0 || p.BountyRatePerThousand >= bountyRateDenominator {
		return fmt.Errorf("%w: bounty rate %d outside (0, %d)", ErrConfiguration, p.BountyRatePerThousand, bountyRateDenominator)
	}
	if p.MaxPoolCapacity == nil || p.MaxPoolCapacity.Sign() <= 0 {
		return fmt.Errorf("%w: pool capacity must be positive", ErrConfiguration)
	}
	return nil
}

// Factory validates creation parameters and instantiates ledgers. The only
// state it carries between calls is its nonce, which makes pool addresses
// unique.
type Factory struct {
	mu       sync.Mutex
	address  [20]byte
	nonce    uint64
	resolver TokenResolver
	store    *Store
	emitter  events.Emitter
	heightFn func() uint64
}

// NewFactory constructs a factory deploying from the given address.
func NewFactory(address [20]byte) *Factory {
	return &Factory{
		address:  address,
		emitter:  events.NoopEmitter{},
		heightFn: defaultHeight,
	}
}

// SetTokenResolver configures how token references are turned into callable
// contracts.
func (f *Factory) SetTokenResolver(resolver TokenResolver) { f.resolver = resolver }

// SetStore enables persistence for the factory and every ledger it creates or
// restores.
func (f *Factory) SetStore(store *Store) { f.store = store }

// SetEmitter configures the emitter shared by the factory and its ledgers.
// Passing nil resets the emitter to a no-op implementation.
func (f *Factory) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		f.emitter = events.NoopEmitter{}
		return
	}
	f.emitter = emitter
}

// SetHeightFunc overrides the height source handed to new ledgers.
func (f *Factory) SetHeightFunc(height func() uint64) {
	if height == nil {
		f.heightFn = defaultHeight
		return
	}
	f.heightFn = height
}

// Address returns the factory's deploying address.
func (f *Factory) Address() [20]byte { return f.address }

// Nonce returns the nonce the next successful creation will consume.
func (f *Factory) Nonce() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce
}

func (f *Factory) height() uint64 {
	if f.heightFn == nil {
		return defaultHeight()
	}
	return f.heightFn()
}

func (f *Factory) configure(l *Ledger) {
	l.SetEmitter(f.emitter)
	l.SetHeightFunc(f.heightFn)
	if f.store != nil {
		l.setStore(f.store)
	}
}

// CreateSyndicate validates params and deploys a new open ledger. Nothing is
// created, persisted or emitted when validation fails.
func (f *Factory) CreateSyndicate(creator [20]byte, params Params) (*Ledger, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: factory not initialised", ErrConfiguration)
	}
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	if f.resolver == nil {
		return nil, fmt.Errorf("%w: token resolver not configured", ErrConfiguration)
	}
	token, ok := f.resolver.ResolveToken(params.Token)
	if !ok {
		return nil, fmt.Errorf("%w: unknown token contract %x", ErrConfiguration, params.Token)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cfg := &Config{
		Address:               ethcrypto.CreateAddress(common.Address(f.address), f.nonce),
		Creator:               creator,
		Token:                 params.Token,
		ExchangeRate:          params.ExchangeRate,
		BountyRatePerThousand: params.BountyRatePerThousand,
		MaxPoolCapacity:       new(big.Int).Set(params.MaxPoolCapacity),
		RefundEligibleFrom:    params.RefundEligibleFrom,
		CreatedAt:             f.height(),
	}
	pool := newPool()
	if f.store != nil {
		if err := f.store.CreateLedger(f.address, f.nonce+1, cfg, pool); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}
	f.nonce++
	ledger := newLedger(cfg, pool, nil, token)
	f.configure(ledger)
	f.emitter.Emit(syndicateEvent{evt: NewCreatedEvent(cfg)})
	return ledger, nil
}

// Restore reloads every persisted ledger and the factory nonce. Ledgers left
// mid-purchase are resolved against the token contract.
func (f *Factory) Restore(ctx context.Context) ([]*Ledger, error) {
	if f == nil || f.store == nil {
		return nil, nil
	}
	nonce, err := f.store.FactoryNonce(f.address)
	if err != nil {
		return nil, err
	}
	ids, err := f.store.LedgerIDs()
	if err != nil {
		return nil, err
	}
	ledgers := make([]*Ledger, 0, len(ids))
	for _, id := range ids {
		cfg, pool, records, err := f.store.LoadLedger(id)
		if err != nil {
			return nil, err
		}
		var token TokenContract
		if f.resolver != nil {
			token, _ = f.resolver.ResolveToken(cfg.Token)
		}
		ledger := newLedger(cfg, pool, records, token)
		f.configure(ledger)
		if err := ledger.resolvePending(ctx); err != nil {
			return nil, fmt.Errorf("restore %x: %w", id, err)
		}
		ledgers = append(ledgers, ledger)
	}
	f.mu.Lock()
	f.nonce = nonce
	f.mu.Unlock()
	return ledgers, nil
}
