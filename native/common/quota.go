package common

import (
	"errors"
	"math"
	"sync"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaValueCapExceeded = errors.New("quota value cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	ReqCount  uint32
	ValueUsed uint64
	EpochID   uint64
}

// Quota defines the limits enforced for a module interaction per address.
// Zero disables the corresponding limit.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxValuePerEpoch    uint64
	EpochSeconds        uint32
}

// Enabled reports whether any limit is configured.
func (q Quota) Enabled() bool {
	return q.MaxRequestsPerEpoch > 0 || q.MaxValuePerEpoch > 0
}

// Epoch maps a unix timestamp onto the quota's epoch counter.
func (q Quota) Epoch(unix uint64) uint64 {
	if q.EpochSeconds == 0 {
		return unix / 60
	}
	return unix / uint64(q.EpochSeconds)
}

// CheckQuota verifies whether the additional request and value usage fit within
// the configured quota. The returned QuotaNow reflects the updated counters when
// the quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addValue uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addValue > 0 {
		if next.ValueUsed > math.MaxUint64-addValue {
			return prev, ErrQuotaCounterOverflow
		}
		next.ValueUsed += addValue
	}
	if q.MaxValuePerEpoch > 0 && next.ValueUsed > q.MaxValuePerEpoch {
		return prev, ErrQuotaValueCapExceeded
	}

	return next, nil
}

// QuotaTracker applies one Quota to many addresses.
type QuotaTracker struct {
	mu    sync.Mutex
	quota Quota
	usage map[[20]byte]QuotaNow
	nowFn func() uint64
}

// NewQuotaTracker builds a tracker reading the clock from now.
func NewQuotaTracker(q Quota, now func() uint64) *QuotaTracker {
	return &QuotaTracker{quota: q, usage: make(map[[20]byte]QuotaNow), nowFn: now}
}

// Charge records one request carrying value for addr, or returns the quota
// error leaving the counters untouched.
func (t *QuotaTracker) Charge(addr [20]byte, value uint64) error {
	_, err := t.Reserve(addr, value)
	return err
}

// Reserve charges like Charge and returns a release func that gives the
// request and value back, for work rejected after the charge. Release is a
// no-op once the epoch has rolled over or when called a second time.
func (t *QuotaTracker) Reserve(addr [20]byte, value uint64) (func(), error) {
	if t == nil || !t.quota.Enabled() {
		return func() {}, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	epoch := t.quota.Epoch(t.now())
	next, err := CheckQuota(t.quota, epoch, t.usage[addr], 1, value)
	if err != nil {
		return func() {}, err
	}
	t.usage[addr] = next
	var once sync.Once
	return func() {
		once.Do(func() { t.release(addr, epoch, value) })
	}, nil
}

func (t *QuotaTracker) release(addr [20]byte, epoch, value uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	usage, ok := t.usage[addr]
	if !ok || usage.EpochID != epoch {
		return
	}
	if usage.ReqCount > 0 {
		usage.ReqCount--
	}
	if usage.ValueUsed > value {
		usage.ValueUsed -= value
	} else {
		usage.ValueUsed = 0
	}
	t.usage[addr] = usage
}

func (t *QuotaTracker) now() uint64 {
	if t.nowFn == nil {
		return 0
	}
	return t.nowFn()
}
