package syndicate

import (
	"context"
	"math/big"
)

// TokenContract is the capability the pool needs from the token it buys. Every
// call either fully succeeds or fully fails.
type TokenContract interface {
	// Purchase buys units for buyer, paying with payment.
	Purchase(ctx context.Context, buyer [20]byte, payment *big.Int, units *big.Int) error
	// Transfer moves units held by from to the recipient.
	Transfer(ctx context.Context, from, to [20]byte, units *big.Int) error
	// BalanceOf reports the units held by holder.
	BalanceOf(ctx context.Context, holder [20]byte) (*big.Int, error)
}

// TokenResolver maps a configured token reference to a callable contract.
type TokenResolver interface {
	ResolveToken(addr [20]byte) (TokenContract, bool)
}

// TokenResolverFunc adapts a function into a TokenResolver.
type TokenResolverFunc func(addr [20]byte) (TokenContract, bool)

// ResolveToken implements TokenResolver.
func (f TokenResolverFunc) ResolveToken(addr [20]byte) (TokenContract, bool) {
	if f == nil {
		return nil, false
	}
	return f(addr)
}

// StaticResolver resolves from a fixed address map.
type StaticResolver map[[20]byte]TokenContract

// ResolveToken implements TokenResolver.
func (s StaticResolver) ResolveToken(addr [20]byte) (TokenContract, bool) {
	token, ok := s[addr]
	return token, ok && token != nil
}
