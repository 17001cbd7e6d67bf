package tipping

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"tipvault/core/events"
	"tipvault/core/types"
	nativecommon "tipvault/native/common"
)

// registryState is the slice of state the season registry needs. The program
// distributed counter is exposed read-only: the quota ledger is its sole
// mutator.
type registryState interface {
	HasRole(role string, addr []byte) bool
	SeasonGet(id uint64) (*Season, bool, error)
	SeasonPut(season *Season) error
	SeasonCount() (uint64, error)
	SetSeasonCount(count uint64) error
	ProgramDistributed() (*big.Int, error)
	SetPaused(module string, paused bool) error
}

// Registry owns the season lifecycle: creation, parameter updates, and
// end-of-season queries.
type Registry struct {
	st         registryState
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	nowFn      func() int64
	programCap *big.Int
}

// NewRegistry creates a season registry backed by the provided state.
func NewRegistry(st registryState) *Registry {
	return &Registry{
		st:         st,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
		programCap: big.NewInt(0),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetPauses wires the pause view consulted before every mutating call.
func (r *Registry) SetPauses(p nativecommon.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// SetNowFunc overrides the time source for deterministic testing.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// SetProgramCap configures the program-wide distribution ceiling shared with
// the quota ledger.
func (r *Registry) SetProgramCap(cap *big.Int) {
	r.programCap = cloneBigInt(cap)
}

func (r *Registry) now() int64 { return r.nowFn() }

func (r *Registry) requireAdmin(caller [20]byte) error {
	if r.st == nil || !r.st.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	return nil
}

// CreateSeason opens the next sequential season. It fails while the previous
// season is still active and refuses caps that could not fit under the
// program-wide ceiling given what was already distributed.
func (r *Registry) CreateSeason(caller [20]byte, title string, start, end int64, minHolding, seasonCap, baseDailyUnit *big.Int, root [32]byte) (*Season, error) {
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(r.pauses, ModuleName); err != nil {
		return nil, err
	}
	now := r.now()
	if start < now {
		return nil, fmt.Errorf("%w: start before now", ErrInvalidWindow)
	}
	if end <= start {
		return nil, fmt.Errorf("%w: end not after start", ErrInvalidWindow)
	}
	if !validAmount(seasonCap) {
		return nil, ErrInvalidCap
	}
	if !validAmount(baseDailyUnit) {
		return nil, ErrInvalidUnit
	}
	if minHolding != nil && minHolding.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative min holding", ErrInvalidAmount)
	}
	if r.programCap.Sign() > 0 {
		distributed, err := r.st.ProgramDistributed()
		if err != nil {
			return nil, err
		}
		if new(big.Int).Add(distributed, seasonCap).Cmp(r.programCap) > 0 {
			return nil, ErrProgramCapExceeded
		}
	}
	count, err := r.st.SeasonCount()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		prev, ok, err := r.st.SeasonGet(count)
		if err != nil {
			return nil, err
		}
		if ok && !prev.Ended(now) {
			return nil, ErrSeasonStillActive
		}
	}
	season := &Season{
		ID:             count + 1,
		Title:          strings.TrimSpace(title),
		StartTime:      start,
		EndTime:        end,
		MinHolding:     cloneBigInt(minHolding),
		CommitmentRoot: root,
		SeasonCap:      cloneBigInt(seasonCap),
		BaseDailyUnit:  cloneBigInt(baseDailyUnit),
		Distributed:    big.NewInt(0),
	}
	if err := r.st.SeasonPut(season); err != nil {
		return nil, err
	}
	if err := r.st.SetSeasonCount(season.ID); err != nil {
		return nil, err
	}
	r.emit(seasonCreatedEvent(season))
	return season.Clone(), nil
}

// UpdateMinHolding replaces the eligibility threshold of an existing season.
func (r *Registry) UpdateMinHolding(caller [20]byte, seasonID uint64, value *big.Int) error {
	if value == nil || value.Sign() < 0 {
		return fmt.Errorf("%w: negative min holding", ErrInvalidAmount)
	}
	return r.updateSeason(caller, seasonID, "minHolding", value.String(), func(s *Season) {
		s.MinHolding = cloneBigInt(value)
	})
}

// UpdateBaseDailyUnit replaces the per-day allowance base of an existing
// season.
func (r *Registry) UpdateBaseDailyUnit(caller [20]byte, seasonID uint64, value *big.Int) error {
	if !validAmount(value) {
		return ErrInvalidUnit
	}
	return r.updateSeason(caller, seasonID, "baseDailyUnit", value.String(), func(s *Season) {
		s.BaseDailyUnit = cloneBigInt(value)
	})
}

// UpdateCommitmentRoot rotates the membership commitment of an existing
// season. Proofs built against the previous root stop verifying immediately.
func (r *Registry) UpdateCommitmentRoot(caller [20]byte, seasonID uint64, root [32]byte) error {
	return r.updateSeason(caller, seasonID, "commitmentRoot", hexHash(root), func(s *Season) {
		s.CommitmentRoot = root
	})
}

func (r *Registry) updateSeason(caller [20]byte, seasonID uint64, field, value string, mutate func(*Season)) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(r.pauses, ModuleName); err != nil {
		return err
	}
	season, err := r.seasonByID(seasonID)
	if err != nil {
		return err
	}
	mutate(season)
	if err := r.st.SeasonPut(season); err != nil {
		return err
	}
	r.emit(seasonUpdatedEvent(seasonID, field, value))
	return nil
}

// IsSeasonEnded reports whether the season's end time has passed.
func (r *Registry) IsSeasonEnded(seasonID uint64) (bool, error) {
	season, err := r.seasonByID(seasonID)
	if err != nil {
		return false, err
	}
	return season.Ended(r.now()), nil
}

// SeasonByID returns a copy of the season record.
func (r *Registry) SeasonByID(seasonID uint64) (*Season, error) {
	season, err := r.seasonByID(seasonID)
	if err != nil {
		return nil, err
	}
	return season.Clone(), nil
}

// RemainingProgramCap returns the program-wide ceiling minus everything
// distributed so far. An unbounded program (no cap configured) reports nil
// so it cannot be mistaken for an exhausted one.
func (r *Registry) RemainingProgramCap() (*big.Int, error) {
	if r.programCap.Sign() == 0 {
		return nil, nil
	}
	distributed, err := r.st.ProgramDistributed()
	if err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(r.programCap, distributed)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	return remaining, nil
}

// Pause disables every mutating tipping entry point. Reads stay available.
func (r *Registry) Pause(caller [20]byte) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	return r.st.SetPaused(ModuleName, true)
}

// Unpause re-enables the mutating entry points.
func (r *Registry) Unpause(caller [20]byte) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	return r.st.SetPaused(ModuleName, false)
}

func (r *Registry) seasonByID(seasonID uint64) (*Season, error) {
	count, err := r.st.SeasonCount()
	if err != nil {
		return nil, err
	}
	if seasonID == 0 || seasonID > count {
		return nil, fmt.Errorf("%w: id %d", ErrSeasonNotFound, seasonID)
	}
	season, ok, err := r.st.SeasonGet(seasonID)
	if err != nil {
		return nil, err
	}
	if !ok || season == nil {
		return nil, fmt.Errorf("%w: id %d", ErrSeasonNotFound, seasonID)
	}
	return season, nil
}

func (r *Registry) emit(evt *types.Event) {
	if r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(WrapEvent(evt))
}
