package syndicate

import "errors"

var (
	// ErrConfiguration reports invalid creation parameters.
	ErrConfiguration = errors.New("syndicate: invalid configuration")
	// ErrCapacityExceeded reports a deposit that would breach the pool cap.
	ErrCapacityExceeded = errors.New("syndicate: pool capacity exceeded")
	// ErrInvalidState reports an operation attempted in the wrong state.
	ErrInvalidState = errors.New("syndicate: invalid state transition")
	// ErrPrincipalMismatch reports a caller that is not entitled to act.
	ErrPrincipalMismatch = errors.New("syndicate: principal mismatch")
	// ErrAlreadySettled reports a second settlement of the same claim.
	ErrAlreadySettled = errors.New("syndicate: already settled")
	// ErrCollaborator reports a rejected call into the token contract.
	ErrCollaborator = errors.New("syndicate: token contract failure")
	// ErrInvalidInput reports malformed call arguments such as zero amounts.
	ErrInvalidInput = errors.New("syndicate: invalid input")
	// ErrStorage reports a failed write to the backing store.
	ErrStorage = errors.New("syndicate: storage failure")

	errNilLedger = errors.New("syndicate: ledger not initialised")
)
