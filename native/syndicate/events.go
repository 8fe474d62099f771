package syndicate

import (
	"math/big"
	"strconv"

	"tokensyndicate/core/types"
	"tokensyndicate/crypto"
)

const (
	EventTypeCreated         = "syndicate.created"
	EventTypeDeposit         = "syndicate.deposit"
	EventTypeDonation        = "syndicate.donation"
	EventTypePurchase        = "syndicate.purchase"
	EventTypeRefund          = "syndicate.refund"
	EventTypeTokensWithdrawn = "syndicate.tokens_withdrawn"
	EventTypeBountyWithdrawn = "syndicate.bounty_withdrawn"
)

const (
	attrSyndicate = "syndicate"
	attrAmount    = "amount"
)

type syndicateEvent struct {
	evt *types.Event
}

func (e syndicateEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e syndicateEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent announces a freshly instantiated pool.
func NewCreatedEvent(cfg *Config) *types.Event {
	attrs := map[string]string{}
	if cfg != nil {
		attrs[attrSyndicate] = crypto.FormatAddress(cfg.Address)
		attrs["creator"] = crypto.FormatAddress(cfg.Creator)
		attrs["token"] = crypto.FormatAddress(cfg.Token)
		attrs["exchangeRate"] = strconv.FormatUint(cfg.ExchangeRate, 10)
		attrs["bountyRate"] = strconv.FormatUint(uint64(cfg.BountyRatePerThousand), 10)
		attrs["capacity"] = formatAmount(cfg.MaxPoolCapacity)
		attrs["refundEligibleFrom"] = strconv.FormatUint(cfg.RefundEligibleFrom, 10)
	}
	return &types.Event{Type: EventTypeCreated, Attributes: attrs}
}

// NewDepositEvent records the split of a single deposit.
func NewDepositEvent(pool, depositor [20]byte, amount, net, bounty *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDeposit, Attributes: map[string]string{
		attrSyndicate: crypto.FormatAddress(pool),
		"depositor":   crypto.FormatAddress(depositor),
		attrAmount:    formatAmount(amount),
		"net":         formatAmount(net),
		"bounty":      formatAmount(bounty),
	}}
}

// NewDonationEvent records a contribution credited wholly to the bounty pool.
func NewDonationEvent(pool, donor [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDonation, Attributes: map[string]string{
		attrSyndicate: crypto.FormatAddress(pool),
		"donor":       crypto.FormatAddress(donor),
		attrAmount:    formatAmount(amount),
	}}
}

// NewPurchaseEvent records the winning purchase.
func NewPurchaseEvent(pool, winner [20]byte, units, payment *big.Int) *types.Event {
	return &types.Event{Type: EventTypePurchase, Attributes: map[string]string{
		attrSyndicate: crypto.FormatAddress(pool),
		"winner":      crypto.FormatAddress(winner),
		"units":       formatAmount(units),
		"payment":     formatAmount(payment),
	}}
}

// NewRefundEvent records a full refund to a depositor.
func NewRefundEvent(pool, depositor [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeRefund, Attributes: map[string]string{
		attrSyndicate: crypto.FormatAddress(pool),
		"depositor":   crypto.FormatAddress(depositor),
		attrAmount:    formatAmount(amount),
	}}
}

// NewTokensWithdrawnEvent records a depositor's token payout.
func NewTokensWithdrawnEvent(pool, depositor, recipient [20]byte, units *big.Int) *types.Event {
	return &types.Event{Type: EventTypeTokensWithdrawn, Attributes: map[string]string{
		attrSyndicate: crypto.FormatAddress(pool),
		"depositor":   crypto.FormatAddress(depositor),
		"recipient":   crypto.FormatAddress(recipient),
		"units":       formatAmount(units),
	}}
}

// NewBountyWithdrawnEvent records the bounty payout to the winner.
func NewBountyWithdrawnEvent(pool, winner [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeBountyWithdrawn, Attributes: map[string]string{
		attrSyndicate: crypto.FormatAddress(pool),
		"winner":      crypto.FormatAddress(winner),
		attrAmount:    formatAmount(amount),
	}}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
