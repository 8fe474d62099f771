package presale

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"tokensyndicate/core/events"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestToken(t *testing.T, height *uint64) *Token {
	t.Helper()
	token, err := NewToken(Params{
		Address:      newTestAddress(0xEE),
		ExchangeRate: 6400,
		SupplyCap:    big.NewInt(10_000_000),
		FundingStart: 0,
		FundingEnd:   1000,
	})
	require.NoError(t, err)
	token.SetHeightFunc(func() uint64 { return *height })
	return token
}

func TestParamsValidate(t *testing.T) {
	valid := Params{Address: newTestAddress(1), ExchangeRate: 1, SupplyCap: big.NewInt(1), FundingStart: 0, FundingEnd: 1}
	require.NoError(t, valid.Validate())

	cases := map[string]func(p *Params){
		"zero address":   func(p *Params) { p.Address = [20]byte{} },
		"zero rate":      func(p *Params) { p.ExchangeRate = 0 },
		"nil cap":        func(p *Params) { p.SupplyCap = nil },
		"zero cap":       func(p *Params) { p.SupplyCap = big.NewInt(0) },
		"huge cap":       func(p *Params) { p.SupplyCap = new(big.Int).Lsh(big.NewInt(1), 300) },
		"empty window":   func(p *Params) { p.FundingEnd = p.FundingStart },
		"reverse window": func(p *Params) { p.FundingStart, p.FundingEnd = 10, 5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			p.SupplyCap = new(big.Int).Set(valid.SupplyCap)
			mutate(&p)
			require.Error(t, p.Validate())
		})
	}
}

func TestPurchaseMintsUnits(t *testing.T) {
	height := uint64(10)
	token := newTestToken(t, &height)
	var seen []string
	token.SetEmitter(events.EmitterFunc(func(evt events.Event) { seen = append(seen, evt.EventType()) }))

	buyer := newTestAddress(0x01)
	ctx := context.Background()
	require.NoError(t, token.Purchase(ctx, buyer, big.NewInt(825), big.NewInt(5_280_000)))

	bal, err := token.BalanceOf(ctx, buyer)
	require.NoError(t, err)
	require.Equal(t, "5280000", bal.String())
	require.Equal(t, "5280000", token.TotalSupply().String())
	require.Equal(t, "825", token.Raised().String())
	require.Equal(t, []string{EventTypePurchase}, seen)
}

func TestPurchaseRejections(t *testing.T) {
	height := uint64(10)
	token := newTestToken(t, &height)
	buyer := newTestAddress(0x01)
	ctx := context.Background()

	err := token.Purchase(ctx, buyer, big.NewInt(825), big.NewInt(5_279_999))
	require.ErrorIs(t, err, ErrRateMismatch)

	err = token.Purchase(ctx, buyer, big.NewInt(0), big.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidAmount)

	err = token.Purchase(ctx, buyer, big.NewInt(2000), big.NewInt(12_800_000))
	require.ErrorIs(t, err, ErrSupplyCap)

	height = 1001
	err = token.Purchase(ctx, buyer, big.NewInt(1), big.NewInt(6400))
	require.ErrorIs(t, err, ErrFundingClosed)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	height = 10
	err = token.Purchase(cancelled, buyer, big.NewInt(1), big.NewInt(6400))
	require.True(t, errors.Is(err, context.Canceled))

	require.Zero(t, token.TotalSupply().Sign())
	bal, err := token.BalanceOf(ctx, buyer)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())
}

func TestTransferMovesBalance(t *testing.T) {
	height := uint64(10)
	token := newTestToken(t, &height)
	ctx := context.Background()
	pool := newTestAddress(0x02)
	holder := newTestAddress(0x03)
	require.NoError(t, token.Purchase(ctx, pool, big.NewInt(10), big.NewInt(64_000)))

	require.NoError(t, token.Transfer(ctx, pool, holder, big.NewInt(64_000)))
	err := token.Transfer(ctx, pool, holder, big.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	bal, err := token.BalanceOf(ctx, holder)
	require.NoError(t, err)
	require.Equal(t, "64000", bal.String())
	bal, err = token.BalanceOf(ctx, pool)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())
}
