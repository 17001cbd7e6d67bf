package tipping

import (
	"fmt"
	"math/big"
	"time"

	"tipvault/core/events"
	"tipvault/core/types"
	nativecommon "tipvault/native/common"
)

// lockPeriod is the delay after a season's end before the unclaimed remainder
// may be swept to the treasury.
const lockPeriod = 90 * secondsPerDay

// ledgerState is the authority view over seasons, quota records, the shared
// distribution counters, and account balances. Snapshot and RevertToSnapshot
// make every mutating ledger call all-or-nothing: the underlying balances
// have no other rollback mechanism.
type ledgerState interface {
	HasRole(role string, addr []byte) bool
	SeasonGet(id uint64) (*Season, bool, error)
	SeasonPut(season *Season) error
	SeasonCount() (uint64, error)
	QuotaGet(account [20]byte, seasonID uint64) (*QuotaState, bool, error)
	QuotaPut(quota *QuotaState) error
	ProgramDistributed() (*big.Int, error)
	SetProgramDistributed(total *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	Snapshot() int
	RevertToSnapshot(revision int)
}

// Ledger is the only component authorised to debit allowance and move tokens
// out of custody. The gateway computes policy; the ledger is the authority.
type Ledger struct {
	st         ledgerState
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	guard      nativecommon.CallGuard
	nowFn      func() int64
	gateway    [20]byte
	custody    [20]byte
	treasury   [20]byte
	programCap *big.Int
}

// NewLedger creates a quota ledger backed by the provided state.
func NewLedger(st ledgerState) *Ledger {
	return &Ledger{
		st:         st,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
		programCap: big.NewInt(0),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetPauses wires the pause view consulted before every mutating call.
func (l *Ledger) SetPauses(p nativecommon.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

// SetNowFunc overrides the time source for deterministic testing.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// SetCustody configures the account all tips are funded from.
func (l *Ledger) SetCustody(addr [20]byte) { l.custody = addr }

// SetTreasury configures the destination of post-season sweeps.
func (l *Ledger) SetTreasury(addr [20]byte) { l.treasury = addr }

// SetProgramCap configures the program-wide distribution ceiling. Zero means
// unbounded.
func (l *Ledger) SetProgramCap(cap *big.Int) { l.programCap = cloneBigInt(cap) }

// SetGatewayAddress designates the only caller allowed to debit. Admin-gated.
func (l *Ledger) SetGatewayAddress(caller [20]byte, gateway [20]byte) error {
	if l.st == nil || !l.st.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if isZeroAddress(gateway) {
		return ErrZeroAddress
	}
	l.gateway = gateway
	return nil
}

func (l *Ledger) now() int64 { return l.nowFn() }

// Allowance reports what the account could still spend today in the season at
// the supplied multiplier. It never commits the day-window reset: a fresh
// window is reported as a full day's allowance without touching storage.
func (l *Ledger) Allowance(account [20]byte, seasonID uint64, multiplier uint64) (*big.Int, error) {
	if multiplier == 0 {
		return nil, fmt.Errorf("%w: zero multiplier", ErrInvalidLabel)
	}
	season, err := l.seasonByID(seasonID)
	if err != nil {
		return nil, err
	}
	if err := l.checkHolding(account, season); err != nil {
		return nil, err
	}
	fresh, err := l.fullDayAllowance(season, multiplier)
	if err != nil {
		return nil, err
	}
	quota, ok, err := l.st.QuotaGet(account, seasonID)
	if err != nil {
		return nil, err
	}
	if !ok || quota == nil || dayIndex(quota.LastReset) < dayIndex(l.now()) {
		return fresh, nil
	}
	remaining := new(big.Int).Sub(quota.TotalAllowance, quota.UsedAllowance)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	return remaining, nil
}

// DebitAndTransfer is the single mutating spend path. Only the designated
// gateway may call it. Checks run in a fixed order: eligibility before any
// allowance math, so an ineligible account can never advance the day-window
// reset; the lifetime bound before the season cap, so one account's
// misbehaviour is rejected before it can consume shared season capacity. Any
// failure reverts the whole unit of work.
func (l *Ledger) DebitAndTransfer(caller [20]byte, account [20]byte, recipient [20]byte, seasonID uint64, amount *big.Int, multiplier uint64, lifetimeBound *big.Int, proof [][32]byte) error {
	if err := l.guard.Enter(); err != nil {
		return err
	}
	defer l.guard.Exit()
	if err := nativecommon.Guard(l.pauses, ModuleName); err != nil {
		return err
	}
	if isZeroAddress(l.gateway) {
		return ErrGatewayNotSet
	}
	if caller != l.gateway {
		return ErrNotGateway
	}
	if isZeroAddress(recipient) || isZeroAddress(account) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if amount.Cmp(maxAmount) > 0 {
		return ErrAmountTooLarge
	}
	if !validAmount(lifetimeBound) {
		return fmt.Errorf("%w: lifetime bound", ErrInvalidAmount)
	}
	if multiplier == 0 {
		return fmt.Errorf("%w: zero multiplier", ErrInvalidLabel)
	}
	now := l.now()
	season, err := l.seasonByID(seasonID)
	if err != nil {
		return err
	}
	if season.Ended(now) {
		return ErrSeasonEnded
	}
	if err := l.checkHolding(account, season); err != nil {
		return err
	}
	leaf := ComputeLeaf(account, lifetimeBound)
	if !VerifyMembership(leaf, proof, season.CommitmentRoot) {
		return ErrProofInvalid
	}

	revision := l.st.Snapshot()
	if err := l.debitAndTransferLocked(season, account, recipient, amount, multiplier, lifetimeBound, now); err != nil {
		l.st.RevertToSnapshot(revision)
		return err
	}
	l.emit(quotaUsedEvent(account, seasonID, amount.String()))
	return nil
}

func (l *Ledger) debitAndTransferLocked(season *Season, account [20]byte, recipient [20]byte, amount *big.Int, multiplier uint64, lifetimeBound *big.Int, now int64) error {
	quota, ok, err := l.st.QuotaGet(account, season.ID)
	if err != nil {
		return err
	}
	if !ok || quota == nil {
		quota = &QuotaState{
			Account:        account,
			SeasonID:       season.ID,
			TotalAllowance: big.NewInt(0),
			UsedAllowance:  big.NewInt(0),
			LifetimeTipped: big.NewInt(0),
		}
	}
	if dayIndex(quota.LastReset) < dayIndex(now) || quota.LastReset == 0 {
		total, err := l.fullDayAllowance(season, multiplier)
		if err != nil {
			return err
		}
		quota.TotalAllowance = total
		quota.UsedAllowance = big.NewInt(0)
		quota.LastReset = now
	}
	used := new(big.Int).Add(quota.UsedAllowance, amount)
	if used.Cmp(quota.TotalAllowance) > 0 {
		return ErrInsufficientAllowance
	}
	lifetime := new(big.Int).Add(quota.LifetimeTipped, amount)
	if lifetime.Cmp(lifetimeBound) > 0 {
		return ErrLifetimeBoundExceeded
	}
	seasonTotal := new(big.Int).Add(season.Distributed, amount)
	if seasonTotal.Cmp(season.SeasonCap) > 0 {
		return ErrSeasonCapExceeded
	}
	programTotal, err := l.st.ProgramDistributed()
	if err != nil {
		return err
	}
	programTotal = new(big.Int).Add(programTotal, amount)
	if l.programCap.Sign() > 0 && programTotal.Cmp(l.programCap) > 0 {
		return ErrProgramCapExceeded
	}

	quota.UsedAllowance = used
	quota.LifetimeTipped = lifetime
	season.Distributed = seasonTotal
	if err := l.st.QuotaPut(quota); err != nil {
		return err
	}
	if err := l.st.SeasonPut(season); err != nil {
		return err
	}
	if err := l.st.SetProgramDistributed(programTotal); err != nil {
		return err
	}
	return l.transfer(l.custody, recipient, amount)
}

// WithdrawUnclaimed sweeps the undistributed remainder of an ended season to
// the treasury. The season's distributed counter is left untouched so the
// audit trail of what was ever claimable stays intact; the withdrawn flag
// makes the sweep exactly-once.
func (l *Ledger) WithdrawUnclaimed(caller [20]byte, seasonID uint64) (*big.Int, error) {
	if err := l.guard.Enter(); err != nil {
		return nil, err
	}
	defer l.guard.Exit()
	if l.st == nil || !l.st.HasRole(RoleAdmin, caller[:]) {
		return nil, ErrUnauthorized
	}
	if err := nativecommon.Guard(l.pauses, ModuleName); err != nil {
		return nil, err
	}
	if isZeroAddress(l.treasury) {
		return nil, fmt.Errorf("%w: treasury", ErrZeroAddress)
	}
	season, err := l.seasonByID(seasonID)
	if err != nil {
		return nil, err
	}
	if l.now() <= season.EndTime+lockPeriod {
		return nil, ErrWithdrawLocked
	}
	if season.UnclaimedWithdrawn {
		return nil, ErrAlreadyWithdrawn
	}
	unclaimed := new(big.Int).Sub(season.SeasonCap, season.Distributed)
	if unclaimed.Sign() <= 0 {
		return nil, ErrNothingUnclaimed
	}

	revision := l.st.Snapshot()
	season.UnclaimedWithdrawn = true
	if err := l.st.SeasonPut(season); err != nil {
		l.st.RevertToSnapshot(revision)
		return nil, err
	}
	if err := l.transfer(l.custody, l.treasury, unclaimed); err != nil {
		l.st.RevertToSnapshot(revision)
		return nil, err
	}
	l.emit(unclaimedWithdrawnEvent(seasonID, unclaimed.String(), l.treasury))
	return unclaimed, nil
}

// SeasonDistributed exposes the cumulative season counter to read surfaces.
func (l *Ledger) SeasonDistributed(seasonID uint64) (*big.Int, error) {
	season, err := l.seasonByID(seasonID)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(season.Distributed), nil
}

func (l *Ledger) fullDayAllowance(season *Season, multiplier uint64) (*big.Int, error) {
	total := new(big.Int).Mul(season.BaseDailyUnit, new(big.Int).SetUint64(multiplier))
	if total.Cmp(maxAmount) > 0 {
		return nil, fmt.Errorf("%w: allowance", ErrAmountTooLarge)
	}
	return total, nil
}

func (l *Ledger) checkHolding(account [20]byte, season *Season) error {
	if season.MinHolding == nil || season.MinHolding.Sign() == 0 {
		return nil
	}
	acc, err := l.st.GetAccount(account[:])
	if err != nil {
		return err
	}
	acc = types.Ensure(acc)
	if acc.Balance.Cmp(season.MinHolding) < 0 {
		return ErrInsufficientHolding
	}
	return nil
}

func (l *Ledger) transfer(from [20]byte, to [20]byte, amount *big.Int) error {
	if isZeroAddress(from) {
		return fmt.Errorf("%w: custody", ErrZeroAddress)
	}
	fromAcc, err := l.st.GetAccount(from[:])
	if err != nil {
		return err
	}
	fromAcc = types.Ensure(fromAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientCustody
	}
	toAcc, err := l.st.GetAccount(to[:])
	if err != nil {
		return err
	}
	toAcc = types.Ensure(toAcc)
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := l.st.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return l.st.PutAccount(to[:], toAcc)
}

func (l *Ledger) seasonByID(seasonID uint64) (*Season, error) {
	count, err := l.st.SeasonCount()
	if err != nil {
		return nil, err
	}
	if seasonID == 0 || seasonID > count {
		return nil, fmt.Errorf("%w: id %d", ErrSeasonNotFound, seasonID)
	}
	season, ok, err := l.st.SeasonGet(seasonID)
	if err != nil {
		return nil, err
	}
	if !ok || season == nil {
		return nil, fmt.Errorf("%w: id %d", ErrSeasonNotFound, seasonID)
	}
	return season, nil
}

func (l *Ledger) emit(evt *types.Event) {
	if l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(WrapEvent(evt))
}
