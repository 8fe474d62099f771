package presale

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"tokensyndicate/core/events"
	"tokensyndicate/core/types"
	"tokensyndicate/crypto"
)

const (
	EventTypePurchase = "presale.purchase"
	EventTypeTransfer = "presale.transfer"
)

var (
	ErrFundingClosed       = errors.New("presale: funding window closed")
	ErrSupplyCap           = errors.New("presale: supply cap reached")
	ErrRateMismatch        = errors.New("presale: payment does not match unit count")
	ErrInsufficientBalance = errors.New("presale: insufficient balance")
	ErrInvalidAmount       = errors.New("presale: amount must be positive")
)

// Params configures a presale token.
type Params struct {
	Address      [20]byte
	ExchangeRate uint64
	SupplyCap    *big.Int
	FundingStart uint64
	FundingEnd   uint64
}

// Validate checks that the token can ever sell a unit.
func (p Params) Validate() error {
	if p.Address == ([20]byte{}) {
		return fmt.Errorf("presale: token address required")
	}
	if p.ExchangeRate == 0 {
		return fmt.Errorf("presale: exchange rate must be positive")
	}
	if p.SupplyCap == nil || p.SupplyCap.Sign() <= 0 {
		return fmt.Errorf("presale: supply cap must be positive")
	}
	if _, overflow := uint256.FromBig(p.SupplyCap); overflow {
		return fmt.Errorf("presale: supply cap exceeds 256 bits")
	}
	if p.FundingStart >= p.FundingEnd {
		return fmt.Errorf("presale: funding start %d must precede end %d", p.FundingStart, p.FundingEnd)
	}
	return nil
}

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string   { return e.evt.Type }
func (e tokenEvent) Event() *types.Event { return e.evt }

// Token sells units at a fixed rate during its funding window and keeps
// per-holder balances.
type Token struct {
	mu       sync.Mutex
	params   Params
	cap      *uint256.Int
	supply   *uint256.Int
	raised   *uint256.Int
	balances map[[20]byte]*uint256.Int
	holders  [][20]byte
	store    Storage
	emitter  events.Emitter
	heightFn func() uint64
}

// NewToken validates params and returns an empty token.
func NewToken(params Params) (*Token, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	capacity, _ := uint256.FromBig(params.SupplyCap)
	params.SupplyCap = new(big.Int).Set(params.SupplyCap)
	return &Token{
		params:   params,
		cap:      capacity,
		supply:   uint256.NewInt(0),
		raised:   uint256.NewInt(0),
		balances: make(map[[20]byte]*uint256.Int),
		emitter:  events.NoopEmitter{},
		heightFn: func() uint64 { return uint64(time.Now().Unix()) },
	}, nil
}

// SetEmitter configures the event emitter. Passing nil disables events.
func (t *Token) SetEmitter(emitter events.Emitter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// SetHeightFunc overrides the height source used for the funding window.
func (t *Token) SetHeightFunc(height func() uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if height == nil {
		t.heightFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	t.heightFn = height
}

// Address returns the token's contract address.
func (t *Token) Address() [20]byte { return t.params.Address }

// Params returns a copy of the token configuration.
func (t *Token) Params() Params {
	p := t.params
	p.SupplyCap = new(big.Int).Set(t.params.SupplyCap)
	return p
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("presale: amount %s exceeds 256 bits", v)
	}
	return out, nil
}

func (t *Token) balanceLocked(holder [20]byte) *uint256.Int {
	if bal, ok := t.balances[holder]; ok {
		return bal
	}
	return uint256.NewInt(0)
}

// Purchase mints units to buyer. units must equal payment times the exchange
// rate, the current height must be inside the funding window and the supply
// cap must not be exceeded.
func (t *Token) Purchase(ctx context.Context, buyer [20]byte, payment *big.Int, units *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pay, err := toUint256(payment)
	if err != nil {
		return err
	}
	want, err := toUint256(units)
	if err != nil {
		return err
	}
	expected, overflow := new(uint256.Int).MulOverflow(pay, uint256.NewInt(t.params.ExchangeRate))
	if overflow || !expected.Eq(want) {
		return fmt.Errorf("%w: %s at rate %d", ErrRateMismatch, payment, t.params.ExchangeRate)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	height := t.heightFn()
	if height < t.params.FundingStart || height > t.params.FundingEnd {
		return fmt.Errorf("%w: height %d outside [%d, %d]", ErrFundingClosed, height, t.params.FundingStart, t.params.FundingEnd)
	}
	supply, overflow := new(uint256.Int).AddOverflow(t.supply, want)
	if overflow || supply.Gt(t.cap) {
		return fmt.Errorf("%w: %s requested, %s of %s sold", ErrSupplyCap, want.Dec(), t.supply.Dec(), t.cap.Dec())
	}
	raised := new(uint256.Int).Add(t.raised, pay)
	buyerBal := new(uint256.Int).Add(t.balanceLocked(buyer), want)
	holders, err := t.persistLocked(supply, raised, map[[20]byte]*uint256.Int{buyer: buyerBal})
	if err != nil {
		return err
	}
	t.supply = supply
	t.raised = raised
	t.balances[buyer] = buyerBal
	t.holders = holders
	t.emitter.Emit(tokenEvent{evt: &types.Event{Type: EventTypePurchase, Attributes: map[string]string{
		"token":   crypto.FormatAddress(t.params.Address),
		"buyer":   crypto.FormatAddress(buyer),
		"payment": pay.Dec(),
		"units":   want.Dec(),
	}}})
	return nil
}

// Transfer moves units between holders.
func (t *Token) Transfer(ctx context.Context, from, to [20]byte, units *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	amount, err := toUint256(units)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fromBal := t.balanceLocked(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: holder has %s, needs %s", ErrInsufficientBalance, fromBal.Dec(), amount.Dec())
	}
	updated := map[[20]byte]*uint256.Int{from: new(uint256.Int).Sub(fromBal, amount)}
	if to != from {
		updated[to] = new(uint256.Int).Add(t.balanceLocked(to), amount)
	} else {
		updated[to] = fromBal.Clone()
	}
	holders, err := t.persistLocked(t.supply, t.raised, updated)
	if err != nil {
		return err
	}
	for holder, bal := range updated {
		t.balances[holder] = bal
	}
	t.holders = holders
	t.emitter.Emit(tokenEvent{evt: &types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"token": crypto.FormatAddress(t.params.Address),
		"from":  crypto.FormatAddress(from),
		"to":    crypto.FormatAddress(to),
		"units": amount.Dec(),
	}}})
	return nil
}

// BalanceOf reports the units held by holder.
func (t *Token) BalanceOf(ctx context.Context, holder [20]byte) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balanceLocked(holder).ToBig(), nil
}

// TotalSupply reports the units sold so far.
func (t *Token) TotalSupply() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.supply.ToBig()
}

// Raised reports the payment collected so far.
func (t *Token) Raised() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.raised.ToBig()
}
