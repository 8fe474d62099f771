package syndicate

import (
	"fmt"
	"math/big"
)

// Status represents the lifecycle state of a syndicate pool.
type Status uint8

const (
	// StatusOpen accepts deposits, donations, refunds and purchase attempts.
	StatusOpen Status = iota
	// StatusPurchasing is held while the token purchase is in flight. Every
	// other operation is rejected until the purchase resolves.
	StatusPurchasing
	// StatusWinnerDetermined is terminal for deposits and purchases; token and
	// bounty withdrawals continue here.
	StatusWinnerDetermined
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusPurchasing:
		return "purchasing"
	case StatusWinnerDetermined:
		return "winner_determined"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPurchasing, StatusWinnerDetermined:
		return true
	default:
		return false
	}
}

// Settlement records which path closed a depositor record.
type Settlement uint8

const (
	SettlementNone Settlement = iota
	SettlementRefund
	SettlementTokens
	// SettlementWithdrawing marks a token transfer that has been started but
	// not yet confirmed. Restore reconciles it against the token balance.
	SettlementWithdrawing
)

func (s Settlement) String() string {
	switch s {
	case SettlementRefund:
		return "refund"
	case SettlementTokens:
		return "tokens"
	case SettlementWithdrawing:
		return "withdrawing"
	default:
		return "none"
	}
}

// Params are the creation inputs accepted by the factory.
type Params struct {
	Token                 [20]byte
	ExchangeRate          uint64
	BountyRatePerThousand uint32
	MaxPoolCapacity       *big.Int
	RefundEligibleFrom    uint64
}

// Config is the immutable configuration of a single pool.
type Config struct {
	Address               [20]byte
	Creator               [20]byte
	Token                 [20]byte
	ExchangeRate          uint64
	BountyRatePerThousand uint32
	MaxPoolCapacity       *big.Int
	RefundEligibleFrom    uint64
	CreatedAt             uint64
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.MaxPoolCapacity = cloneBigInt(c.MaxPoolCapacity)
	return &clone
}

// DepositorRecord tracks a single participant. Balances are retained after
// settlement for auditability; the aggregates only count unsettled records.
type DepositorRecord struct {
	Address    [20]byte
	NetPresale *big.Int
	Bounty     *big.Int
	Settled    bool
	Settlement Settlement
}

func newRecord(addr [20]byte) *DepositorRecord {
	return &DepositorRecord{Address: addr, NetPresale: big.NewInt(0), Bounty: big.NewInt(0)}
}

// Clone returns a deep copy of the record.
func (r *DepositorRecord) Clone() *DepositorRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.NetPresale = cloneBigInt(r.NetPresale)
	clone.Bounty = cloneBigInt(r.Bounty)
	return &clone
}

// Total returns the refundable value of the record.
func (r *DepositorRecord) Total() *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(cloneBigInt(r.NetPresale), cloneBigInt(r.Bounty))
}

// Pool is the mutable aggregate state of a syndicate.
type Pool struct {
	Status            Status
	TotalNetPresale   *big.Int
	TotalBounty       *big.Int
	TotalDeposited    *big.Int
	Held              *big.Int
	Winner            [20]byte
	WinnerSet         bool
	PurchasedUnits    *big.Int
	TokensDistributed *big.Int
	BountyWithdrawn   bool
}

func newPool() *Pool {
	return &Pool{
		Status:            StatusOpen,
		TotalNetPresale:   big.NewInt(0),
		TotalBounty:       big.NewInt(0),
		TotalDeposited:    big.NewInt(0),
		Held:              big.NewInt(0),
		PurchasedUnits:    big.NewInt(0),
		TokensDistributed: big.NewInt(0),
	}
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalNetPresale = cloneBigInt(p.TotalNetPresale)
	clone.TotalBounty = cloneBigInt(p.TotalBounty)
	clone.TotalDeposited = cloneBigInt(p.TotalDeposited)
	clone.Held = cloneBigInt(p.Held)
	clone.PurchasedUnits = cloneBigInt(p.PurchasedUnits)
	clone.TokensDistributed = cloneBigInt(p.TokensDistributed)
	return &clone
}

// Snapshot is a consistent point-in-time view of a ledger.
type Snapshot struct {
	Config     *Config
	Pool       *Pool
	Depositors int
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	return addr == [20]byte{}
}
