package tipping

import "errors"

// Validation errors: malformed or out-of-range input.
var (
	ErrZeroAddress    = errors.New("tipping: zero address")
	ErrInvalidAmount  = errors.New("tipping: amount must be positive")
	ErrAmountTooLarge = errors.New("tipping: amount exceeds ceiling")
	ErrInvalidWindow  = errors.New("tipping: invalid season window")
	ErrInvalidCap     = errors.New("tipping: cap must be positive")
	ErrInvalidUnit    = errors.New("tipping: base daily unit must be positive")
	ErrInvalidLabel   = errors.New("tipping: invalid label")
	ErrLengthMismatch = errors.New("tipping: recipients and amounts length mismatch")
	ErrEmptyBatch     = errors.New("tipping: empty batch")
)

// Authorization errors: caller lacks the required authority.
var (
	ErrUnauthorized  = errors.New("tipping: unauthorized")
	ErrNotGateway    = errors.New("tipping: caller is not the gateway")
	ErrGatewayNotSet = errors.New("tipping: gateway address not set")
	ErrLedgerNotSet  = errors.New("tipping: quota ledger not configured")
)

// State errors: the referenced record or lifecycle phase does not allow the
// operation.
var (
	ErrSeasonNotFound       = errors.New("tipping: season not found")
	ErrSeasonEnded          = errors.New("tipping: season already ended")
	ErrSeasonStillActive    = errors.New("tipping: previous season still active")
	ErrInsufficientHolding  = errors.New("tipping: holding below season minimum")
	ErrProfileInactive      = errors.New("tipping: account profile missing or inactive")
	ErrLabelNotFound        = errors.New("tipping: label not found")
	ErrLabelInactive        = errors.New("tipping: label inactive")
	ErrRecipientBlacklisted = errors.New("tipping: recipient blacklisted")
	ErrWithdrawLocked       = errors.New("tipping: unclaimed funds still locked")
	ErrAlreadyWithdrawn     = errors.New("tipping: unclaimed funds already withdrawn")
	ErrNothingUnclaimed     = errors.New("tipping: nothing unclaimed")
)

// Resource errors: a cap or balance would be exceeded.
var (
	ErrInsufficientAllowance = errors.New("tipping: insufficient daily allowance")
	ErrLifetimeBoundExceeded = errors.New("tipping: lifetime bound exceeded")
	ErrSeasonCapExceeded     = errors.New("tipping: season cap exceeded")
	ErrProgramCapExceeded    = errors.New("tipping: program cap exceeded")
	ErrInsufficientCustody   = errors.New("tipping: insufficient custodial balance")
)

// Proof errors.
var (
	ErrProofInvalid = errors.New("tipping: membership proof invalid")
)
