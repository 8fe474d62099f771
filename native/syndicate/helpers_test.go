package syndicate

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tokensyndicate/core/events"
	"tokensyndicate/core/state"
	"tokensyndicate/core/types"
)

type purchaseCall struct {
	buyer   [20]byte
	payment *big.Int
	units   *big.Int
}

type transferCall struct {
	from, to [20]byte
	units    *big.Int
}

// fakeToken is a scriptable TokenContract. Hooks run before the outcome is
// decided, which lets tests re-enter the ledger mid-call.
type fakeToken struct {
	mu          sync.Mutex
	purchaseErr error
	transferErr error
	onPurchase  func()
	onTransfer  func()
	purchases   []purchaseCall
	transfers   []transferCall
	balances    map[[20]byte]*big.Int
}

func newFakeToken() *fakeToken {
	return &fakeToken{balances: make(map[[20]byte]*big.Int)}
}

func (f *fakeToken) balance(addr [20]byte) *big.Int {
	if bal, ok := f.balances[addr]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (f *fakeToken) Purchase(_ context.Context, buyer [20]byte, payment *big.Int, units *big.Int) error {
	if hook := f.onPurchase; hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purchaseErr != nil {
		return f.purchaseErr
	}
	f.purchases = append(f.purchases, purchaseCall{buyer: buyer, payment: new(big.Int).Set(payment), units: new(big.Int).Set(units)})
	f.balances[buyer] = new(big.Int).Add(f.balance(buyer), units)
	return nil
}

func (f *fakeToken) Transfer(_ context.Context, from, to [20]byte, units *big.Int) error {
	if hook := f.onTransfer; hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transferErr != nil {
		return f.transferErr
	}
	if f.balance(from).Cmp(units) < 0 {
		return errors.New("fake token: insufficient balance")
	}
	f.transfers = append(f.transfers, transferCall{from: from, to: to, units: new(big.Int).Set(units)})
	f.balances[from] = new(big.Int).Sub(f.balance(from), units)
	f.balances[to] = new(big.Int).Add(f.balance(to), units)
	return nil
}

func (f *fakeToken) BalanceOf(_ context.Context, holder [20]byte) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance(holder)), nil
}

func (f *fakeToken) setPurchaseErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purchaseErr = err
}

func (f *fakeToken) setTransferErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferErr = err
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []*types.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	payload, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, payload.Event())
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Type)
	}
	return out
}

func (r *recordingEmitter) last() *types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

// flakyStorage wraps a KV store and fails writes while failWrites is set.
type flakyStorage struct {
	*state.KVStore
	mu         sync.Mutex
	failWrites bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyStorage) KVPutBatch(entries ...state.KVEntry) error {
	f.mu.Lock()
	fail := f.failWrites
	f.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return f.KVStore.KVPutBatch(entries...)
}

func (f *flakyStorage) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = fail
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	factoryAddr = newTestAddress(0xFA)
	tokenAddr   = newTestAddress(0x70)
	depositorA  = newTestAddress(0xA1)
	depositorB  = newTestAddress(0xB2)
	depositorC  = newTestAddress(0xC3)
)

func validParams() Params {
	return Params{
		Token:                 tokenAddr,
		ExchangeRate:          6400,
		BountyRatePerThousand: 250,
		MaxPoolCapacity:       big.NewInt(1_000_000),
		RefundEligibleFrom:    0,
	}
}

type testEnv struct {
	factory *Factory
	ledger  *Ledger
	token   *fakeToken
	emitter *recordingEmitter
	height  *uint64
}

func newTestEnv(t *testing.T, params Params) *testEnv {
	t.Helper()
	height := uint64(10)
	token := newFakeToken()
	emitter := &recordingEmitter{}
	factory := NewFactory(factoryAddr)
	factory.SetTokenResolver(StaticResolver{tokenAddr: token})
	factory.SetEmitter(emitter)
	factory.SetHeightFunc(func() uint64 { return height })
	ledger, err := factory.CreateSyndicate(depositorC, params)
	require.NoError(t, err)
	return &testEnv{factory: factory, ledger: ledger, token: token, emitter: emitter, height: &height}
}

func mustInvariants(t *testing.T, l *Ledger) {
	t.Helper()
	require.NoError(t, l.CheckInvariants())
}
