package syndicate

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"tokensyndicate/core/events"
	"tokensyndicate/core/types"
)

const bountyRateDenominator = 1000

type ledgerStore interface {
	Commit(id [20]byte, change Change) error
}

// Ledger is a single crowd pool. All mutations are serialised by one mutex;
// token contract calls run outside the lock after the ledger has recorded its
// own irreversible effects, so a reentrant caller observes the updated state.
//
// Emitters are invoked with the lock held and must not call back into the
// ledger.
type Ledger struct {
	mu       sync.Mutex
	cfg      *Config
	pool     *Pool
	records  map[[20]byte]*DepositorRecord
	order    [][20]byte
	dirty    map[[20]byte]struct{}
	token    TokenContract
	store    ledgerStore
	emitter  events.Emitter
	heightFn func() uint64
}

func defaultHeight() uint64 { return uint64(time.Now().Unix()) }

func newLedger(cfg *Config, pool *Pool, records []*DepositorRecord, token TokenContract) *Ledger {
	l := &Ledger{
		cfg:      cfg.Clone(),
		pool:     pool.Clone(),
		records:  make(map[[20]byte]*DepositorRecord, len(records)),
		order:    make([][20]byte, 0, len(records)),
		dirty:    make(map[[20]byte]struct{}),
		token:    token,
		emitter:  events.NoopEmitter{},
		heightFn: defaultHeight,
	}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if _, seen := l.records[rec.Address]; !seen {
			l.order = append(l.order, rec.Address)
		}
		l.records[rec.Address] = rec.Clone()
	}
	return l
}

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetHeightFunc overrides the height source used for refund eligibility.
func (l *Ledger) SetHeightFunc(height func() uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if height == nil {
		l.heightFn = defaultHeight
		return
	}
	l.heightFn = height
}

func (l *Ledger) setStore(store ledgerStore) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store = store
}

func (l *Ledger) emit(evt *types.Event) {
	if l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(syndicateEvent{evt: evt})
}

func (l *Ledger) height() uint64 {
	if l.heightFn == nil {
		return defaultHeight()
	}
	return l.heightFn()
}

// Address returns the pool identity assigned at creation.
func (l *Ledger) Address() [20]byte {
	if l == nil || l.cfg == nil {
		return [20]byte{}
	}
	return l.cfg.Address
}

// Config returns a copy of the immutable configuration.
func (l *Ledger) Config() *Config {
	if l == nil {
		return nil
	}
	return l.cfg.Clone()
}

// Snapshot returns a consistent copy of the configuration and pool.
func (l *Ledger) Snapshot() *Snapshot {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Snapshot{Config: l.cfg.Clone(), Pool: l.pool.Clone(), Depositors: len(l.order)}
}

// Status returns the current lifecycle state.
func (l *Ledger) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Status
}

// Winner returns the bounty hunter once the purchase has completed.
func (l *Ledger) Winner() ([20]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.pool.WinnerSet {
		return [20]byte{}, false
	}
	return l.pool.Winner, true
}

// Record returns a copy of the depositor's record.
func (l *Ledger) Record(addr [20]byte) (*DepositorRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[addr]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// BalanceOf returns the depositor's presale and bounty balances. Settled
// records report zero.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[addr]
	if !ok || rec.Settled {
		return big.NewInt(0), big.NewInt(0)
	}
	return cloneBigInt(rec.NetPresale), cloneBigInt(rec.Bounty)
}

// TokenEntitlement returns the units an unsettled depositor could withdraw
// once a winner exists.
func (l *Ledger) TokenEntitlement(addr [20]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[addr]
	if !ok || rec.Settled {
		return big.NewInt(0)
	}
	return l.entitlement(rec)
}

// Depositors lists every participant in first-deposit order.
func (l *Ledger) Depositors() [][20]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][20]byte(nil), l.order...)
}

func (l *Ledger) entitlement(rec *DepositorRecord) *big.Int {
	return new(big.Int).Mul(cloneBigInt(rec.NetPresale), new(big.Int).SetUint64(l.cfg.ExchangeRate))
}

// withDirtyLocked appends records whose last persist failed so the next write
// brings the store back in line with memory.
func (l *Ledger) withDirtyLocked(records []*DepositorRecord) []*DepositorRecord {
	if len(l.dirty) == 0 {
		return records
	}
	out := append([]*DepositorRecord(nil), records...)
	for addr := range l.dirty {
		already := false
		for _, rec := range records {
			if rec.Address == addr {
				already = true
				break
			}
		}
		if !already {
			out = append(out, l.records[addr])
		}
	}
	return out
}

// commitLocked persists the change and only then applies it to memory. A store
// failure leaves the ledger exactly as it was.
func (l *Ledger) commitLocked(pool *Pool, records []*DepositorRecord, newDepositor *[20]byte) error {
	order := l.order
	if newDepositor != nil {
		order = append(append([][20]byte(nil), l.order...), *newDepositor)
	}
	if l.store != nil {
		change := Change{Pool: pool, Records: l.withDirtyLocked(records)}
		if newDepositor != nil {
			change.Depositors = order
		}
		if err := l.store.Commit(l.cfg.Address, change); err != nil {
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
		l.dirty = make(map[[20]byte]struct{})
	}
	l.pool = pool
	for _, rec := range records {
		l.records[rec.Address] = rec
	}
	l.order = order
	return nil
}

// forceCommitLocked applies the change to memory unconditionally. It is used
// once the token contract has already acted, when memory must follow reality.
// A failed persist is retried as part of the next write.
func (l *Ledger) forceCommitLocked(pool *Pool, records []*DepositorRecord) error {
	l.pool = pool
	for _, rec := range records {
		l.records[rec.Address] = rec
	}
	if l.store == nil {
		return nil
	}
	if err := l.store.Commit(l.cfg.Address, Change{Pool: pool, Records: l.withDirtyLocked(records)}); err != nil {
		for _, rec := range records {
			l.dirty[rec.Address] = struct{}{}
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	l.dirty = make(map[[20]byte]struct{})
	return nil
}

func validateContribution(principal [20]byte, amount *big.Int) error {
	if isZeroAddress(principal) {
		return fmt.Errorf("%w: principal address required", ErrInvalidInput)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return nil
}

// Deposit splits amount into the depositor's net presale balance and the
// shared bounty pool using the configured bounty rate.
func (l *Ledger) Deposit(depositor [20]byte, amount *big.Int) (*DepositorRecord, error) {
	if l == nil || l.cfg == nil {
		return nil, errNilLedger
	}
	return l.DepositWithBountyRate(depositor, amount, l.cfg.BountyRatePerThousand)
}

// DepositWithBountyRate is Deposit with a depositor-chosen bounty rate. The
// rate may exceed the configured minimum but must stay below 1000.
func (l *Ledger) DepositWithBountyRate(depositor [20]byte, amount *big.Int, rate uint32) (*DepositorRecord, error) {
	if l == nil || l.cfg == nil {
		return nil, errNilLedger
	}
	if err := validateContribution(depositor, amount); err != nil {
		return nil, err
	}
	if rate < l.cfg.BountyRatePerThousand || rate >= bountyRateDenominator {
		return nil, fmt.Errorf("%w: bounty rate %d outside [%d, %d)", ErrInvalidInput, rate, l.cfg.BountyRatePerThousand, bountyRateDenominator)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(rate)))
	fee.Quo(fee, big.NewInt(bountyRateDenominator))
	net := new(big.Int).Sub(amount, fee)
	return l.credit(depositor, new(big.Int).Set(amount), net, fee, func() *types.Event {
		return NewDepositEvent(l.cfg.Address, depositor, amount, net, fee)
	})
}

// Donate credits the whole amount to the bounty pool. The donor gains no token
// entitlement but may reclaim the donation through Refund while the pool is
// open.
func (l *Ledger) Donate(donor [20]byte, amount *big.Int) (*DepositorRecord, error) {
	if l == nil || l.cfg == nil {
		return nil, errNilLedger
	}
	if err := validateContribution(donor, amount); err != nil {
		return nil, err
	}
	value := new(big.Int).Set(amount)
	return l.credit(donor, value, big.NewInt(0), value, func() *types.Event {
		return NewDonationEvent(l.cfg.Address, donor, value)
	})
}

func (l *Ledger) credit(principal [20]byte, amount, net, fee *big.Int, event func() *types.Event) (*DepositorRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pool.Status != StatusOpen {
		return nil, fmt.Errorf("%w: pool is %s", ErrInvalidState, l.pool.Status)
	}
	total := new(big.Int).Add(l.pool.TotalDeposited, amount)
	if total.Cmp(l.cfg.MaxPoolCapacity) > 0 {
		return nil, fmt.Errorf("%w: %s would exceed capacity %s", ErrCapacityExceeded, total, l.cfg.MaxPoolCapacity)
	}
	existing, existed := l.records[principal]
	if existed && existing.Settled {
		return nil, fmt.Errorf("%w: record closed by %s", ErrAlreadySettled, existing.Settlement)
	}
	var updated *DepositorRecord
	if existed {
		updated = existing.Clone()
	} else {
		updated = newRecord(principal)
	}
	updated.NetPresale.Add(updated.NetPresale, net)
	updated.Bounty.Add(updated.Bounty, fee)

	pool := l.pool.Clone()
	pool.TotalNetPresale.Add(pool.TotalNetPresale, net)
	pool.TotalBounty.Add(pool.TotalBounty, fee)
	pool.TotalDeposited = total
	pool.Held.Add(pool.Held, amount)

	var grown *[20]byte
	if !existed {
		grown = &principal
	}
	if err := l.commitLocked(pool, []*DepositorRecord{updated}, grown); err != nil {
		return nil, err
	}
	l.emit(event())
	return updated.Clone(), nil
}

// TriggerPurchase buys tokens with the whole net presale balance. The first
// caller to succeed becomes the permanent winner; a failed purchase leaves the
// pool open with no winner.
func (l *Ledger) TriggerPurchase(ctx context.Context, caller [20]byte) (*big.Int, error) {
	if l == nil || l.cfg == nil {
		return nil, errNilLedger
	}
	if isZeroAddress(caller) {
		return nil, fmt.Errorf("%w: caller address required", ErrInvalidInput)
	}
	l.mu.Lock()
	if l.pool.Status != StatusOpen {
		status := l.pool.Status
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: purchase not possible while %s", ErrInvalidState, status)
	}
	if l.pool.TotalNetPresale.Sign() <= 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: no presale value to purchase with", ErrInvalidState)
	}
	if l.token == nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: token contract not configured", ErrCollaborator)
	}
	payment := cloneBigInt(l.pool.TotalNetPresale)
	units := new(big.Int).Mul(payment, new(big.Int).SetUint64(l.cfg.ExchangeRate))

	pending := l.pool.Clone()
	pending.Status = StatusPurchasing
	pending.Winner = caller
	pending.PurchasedUnits = new(big.Int).Set(units)
	if err := l.commitLocked(pending, nil, nil); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	token := l.token
	l.mu.Unlock()

	purchaseErr := token.Purchase(ctx, l.cfg.Address, payment, units)

	l.mu.Lock()
	defer l.mu.Unlock()
	if purchaseErr != nil {
		reverted := l.pool.Clone()
		reverted.Status = StatusOpen
		reverted.Winner = [20]byte{}
		reverted.PurchasedUnits = big.NewInt(0)
		if err := l.forceCommitLocked(reverted, nil); err != nil {
			return nil, fmt.Errorf("%w: %v (%w)", ErrCollaborator, purchaseErr, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, purchaseErr)
	}
	final := l.pool.Clone()
	final.Status = StatusWinnerDetermined
	final.WinnerSet = true
	final.Held.Sub(final.Held, payment)
	err := l.forceCommitLocked(final, nil)
	l.emit(NewPurchaseEvent(l.cfg.Address, caller, units, payment))
	if err != nil {
		return nil, err
	}
	return units, nil
}

// Refund pays a depositor back their full contribution while the pool is open
// and the refund height has been reached.
func (l *Ledger) Refund(depositor [20]byte) (*big.Int, error) {
	if l == nil || l.cfg == nil {
		return nil, errNilLedger
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pool.Status != StatusOpen {
		return nil, fmt.Errorf("%w: refund not possible while %s", ErrInvalidState, l.pool.Status)
	}
	if current := l.height(); current < l.cfg.RefundEligibleFrom {
		return nil, fmt.Errorf("%w: refunds open at height %d, current %d", ErrInvalidState, l.cfg.RefundEligibleFrom, current)
	}
	rec, ok := l.records[depositor]
	if !ok {
		return nil, fmt.Errorf("%w: no contribution recorded", ErrPrincipalMismatch)
	}
	if rec.Settled {
		return nil, fmt.Errorf("%w: record closed by %s", ErrAlreadySettled, rec.Settlement)
	}
	amount := rec.Total()
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: nothing to refund", ErrPrincipalMismatch)
	}
	updated := rec.Clone()
	updated.Settled = true
	updated.Settlement = SettlementRefund

	pool := l.pool.Clone()
	pool.TotalNetPresale.Sub(pool.TotalNetPresale, rec.NetPresale)
	pool.TotalBounty.Sub(pool.TotalBounty, rec.Bounty)
	pool.TotalDeposited.Sub(pool.TotalDeposited, amount)
	pool.Held.Sub(pool.Held, amount)
	if err := l.commitLocked(pool, []*DepositorRecord{updated}, nil); err != nil {
		return nil, err
	}
	l.emit(NewRefundEvent(l.cfg.Address, depositor, amount))
	return amount, nil
}

// WithdrawTokens transfers the depositor's token entitlement to recipient, or
// to the depositor when recipient is the zero address. The record is persisted
// as withdrawing before the transfer, closed once the transfer succeeds and
// reopened if it fails. TokensDistributed only counts confirmed transfers.
func (l *Ledger) WithdrawTokens(ctx context.Context, depositor, recipient [20]byte) (*big.Int, error) {
	if l == nil || l.cfg == nil {
		return nil, errNilLedger
	}
	l.mu.Lock()
	if l.pool.Status != StatusWinnerDetermined {
		status := l.pool.Status
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: token withdrawal not possible while %s", ErrInvalidState, status)
	}
	rec, ok := l.records[depositor]
	if !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: no contribution recorded", ErrPrincipalMismatch)
	}
	if rec.Settled {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: record closed by %s", ErrAlreadySettled, rec.Settlement)
	}
	if rec.NetPresale.Sign() == 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: no presale balance", ErrPrincipalMismatch)
	}
	if l.token == nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: token contract not configured", ErrCollaborator)
	}
	if isZeroAddress(recipient) {
		recipient = depositor
	}
	units := l.entitlement(rec)
	pending := rec.Clone()
	pending.Settled = true
	pending.Settlement = SettlementWithdrawing
	if err := l.commitLocked(l.pool.Clone(), []*DepositorRecord{pending}, nil); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	token := l.token
	l.mu.Unlock()

	transferErr := token.Transfer(ctx, l.cfg.Address, recipient, units)

	l.mu.Lock()
	defer l.mu.Unlock()
	closing := l.records[depositor].Clone()
	if transferErr != nil {
		closing.Settled = false
		closing.Settlement = SettlementNone
		if err := l.forceCommitLocked(l.pool.Clone(), []*DepositorRecord{closing}); err != nil {
			return nil, fmt.Errorf("%w: %v (%w)", ErrCollaborator, transferErr, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, transferErr)
	}
	closing.Settlement = SettlementTokens
	pool := l.pool.Clone()
	pool.TokensDistributed.Add(pool.TokensDistributed, units)
	err := l.forceCommitLocked(pool, []*DepositorRecord{closing})
	l.emit(NewTokensWithdrawnEvent(l.cfg.Address, depositor, recipient, units))
	if err != nil {
		return nil, err
	}
	return units, nil
}

// WithdrawBounty pays the whole bounty pool to the winner, once.
func (l *Ledger) WithdrawBounty(caller [20]byte) (*big.Int, error) {
	if l == nil || l.cfg == nil {
		return nil, errNilLedger
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pool.Status != StatusWinnerDetermined {
		return nil, fmt.Errorf("%w: bounty withdrawal not possible while %s", ErrInvalidState, l.pool.Status)
	}
	if !l.pool.WinnerSet || caller != l.pool.Winner {
		return nil, fmt.Errorf("%w: caller is not the winner", ErrPrincipalMismatch)
	}
	if l.pool.BountyWithdrawn {
		return nil, fmt.Errorf("%w: bounty already withdrawn", ErrAlreadySettled)
	}
	amount := cloneBigInt(l.pool.TotalBounty)
	pool := l.pool.Clone()
	pool.BountyWithdrawn = true
	pool.Held.Sub(pool.Held, amount)
	if err := l.commitLocked(pool, nil, nil); err != nil {
		return nil, err
	}
	l.emit(NewBountyWithdrawnEvent(l.cfg.Address, caller, amount))
	return amount, nil
}

// resolvePending settles work whose outcome was not persisted, e.g. after a
// restart mid-call. The token balance held by the ledger decides both cases: a
// purchase went through if the ledger holds the purchased units, and the
// shortfall below PurchasedUnits-TokensDistributed is what pending
// withdrawals actually transferred.
func (l *Ledger) resolvePending(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pool.Status != StatusPurchasing && len(l.withdrawingLocked()) == 0 {
		return nil
	}
	if l.token == nil {
		return fmt.Errorf("%w: token contract not configured", ErrCollaborator)
	}
	balance, err := l.token.BalanceOf(ctx, l.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCollaborator, err)
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	if l.pool.Status == StatusPurchasing {
		resolved := l.pool.Clone()
		if balance.Cmp(resolved.PurchasedUnits) >= 0 {
			resolved.Status = StatusWinnerDetermined
			resolved.WinnerSet = true
			resolved.Held.Sub(resolved.Held, resolved.TotalNetPresale)
		} else {
			resolved.Status = StatusOpen
			resolved.Winner = [20]byte{}
			resolved.PurchasedUnits = big.NewInt(0)
		}
		return l.forceCommitLocked(resolved, nil)
	}
	return l.resolveWithdrawalsLocked(balance)
}

func (l *Ledger) withdrawingLocked() []*DepositorRecord {
	var pending []*DepositorRecord
	for _, addr := range l.order {
		if rec := l.records[addr]; rec != nil && rec.Settlement == SettlementWithdrawing {
			pending = append(pending, rec)
		}
	}
	return pending
}

// resolveWithdrawalsLocked closes pending withdrawals covered by the units that
// left the ledger and reopens the rest, in first-deposit order.
func (l *Ledger) resolveWithdrawalsLocked(balance *big.Int) error {
	pending := l.withdrawingLocked()
	outstanding := new(big.Int).Sub(l.pool.PurchasedUnits, l.pool.TokensDistributed)
	transferred := new(big.Int).Sub(outstanding, balance)
	pool := l.pool.Clone()
	resolved := make([]*DepositorRecord, 0, len(pending))
	for _, rec := range pending {
		units := l.entitlement(rec)
		updated := rec.Clone()
		if transferred.Cmp(units) >= 0 {
			transferred.Sub(transferred, units)
			updated.Settlement = SettlementTokens
			pool.TokensDistributed.Add(pool.TokensDistributed, units)
		} else {
			updated.Settled = false
			updated.Settlement = SettlementNone
		}
		resolved = append(resolved, updated)
	}
	return l.forceCommitLocked(pool, resolved)
}

// CheckInvariants verifies the conservation rules between the aggregate pool
// and the individual records.
func (l *Ledger) CheckInvariants() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.pool
	if sum := new(big.Int).Add(p.TotalNetPresale, p.TotalBounty); sum.Cmp(p.TotalDeposited) != 0 {
		return fmt.Errorf("syndicate: invariant violated: net %s + bounty %s != deposited %s", p.TotalNetPresale, p.TotalBounty, p.TotalDeposited)
	}
	if p.Held.Sign() < 0 {
		return fmt.Errorf("syndicate: invariant violated: negative held value %s", p.Held)
	}
	if p.TotalDeposited.Cmp(l.cfg.MaxPoolCapacity) > 0 {
		return fmt.Errorf("syndicate: invariant violated: deposited %s above capacity %s", p.TotalDeposited, l.cfg.MaxPoolCapacity)
	}
	unsettledNet := big.NewInt(0)
	unsettledBounty := big.NewInt(0)
	eligibleNet := big.NewInt(0)
	distributed := big.NewInt(0)
	for _, rec := range l.records {
		if !rec.Settled {
			unsettledNet.Add(unsettledNet, rec.NetPresale)
			unsettledBounty.Add(unsettledBounty, rec.Bounty)
		}
		if rec.Settlement != SettlementRefund {
			eligibleNet.Add(eligibleNet, rec.NetPresale)
		}
		if rec.Settlement == SettlementTokens {
			distributed.Add(distributed, l.entitlement(rec))
		}
	}
	switch p.Status {
	case StatusOpen, StatusPurchasing:
		if p.WinnerSet {
			return fmt.Errorf("syndicate: invariant violated: winner recorded while %s", p.Status)
		}
		if unsettledNet.Cmp(p.TotalNetPresale) != 0 || unsettledBounty.Cmp(p.TotalBounty) != 0 {
			return fmt.Errorf("syndicate: invariant violated: records (%s, %s) disagree with pool (%s, %s)", unsettledNet, unsettledBounty, p.TotalNetPresale, p.TotalBounty)
		}
		if p.Held.Cmp(p.TotalDeposited) != 0 {
			return fmt.Errorf("syndicate: invariant violated: held %s != deposited %s", p.Held, p.TotalDeposited)
		}
	case StatusWinnerDetermined:
		if !p.WinnerSet {
			return fmt.Errorf("syndicate: invariant violated: no winner recorded")
		}
		expected := big.NewInt(0)
		if !p.BountyWithdrawn {
			expected = p.TotalBounty
		}
		if p.Held.Cmp(expected) != 0 {
			return fmt.Errorf("syndicate: invariant violated: held %s != unwithdrawn bounty %s", p.Held, expected)
		}
		if eligibleNet.Cmp(p.TotalNetPresale) != 0 {
			return fmt.Errorf("syndicate: invariant violated: entitled net %s != purchased net %s", eligibleNet, p.TotalNetPresale)
		}
		if distributed.Cmp(p.TokensDistributed) != 0 {
			return fmt.Errorf("syndicate: invariant violated: distributed %s != recorded %s", distributed, p.TokensDistributed)
		}
		if p.TokensDistributed.Cmp(p.PurchasedUnits) > 0 {
			return fmt.Errorf("syndicate: invariant violated: distributed %s exceeds purchased %s", p.TokensDistributed, p.PurchasedUnits)
		}
	}
	return nil
}
