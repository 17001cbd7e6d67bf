package tipping

import (
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ModuleName keys the pause toggle for every mutating tipping entry point.
const ModuleName = "tipping"

// RoleAdmin authorises season administration, label management, and
// withdrawals.
const RoleAdmin = "ROLE_TIPPING_ADMIN"

// secondsPerDay fixes the allowance day-window. Windows are UTC unix days, so
// a reset happens at most once per calendar day regardless of call pattern.
const secondsPerDay = 86_400

// maxAmount bounds every stored monetary quantity. Amounts are big integers,
// so nothing can wrap, but the ceiling keeps state compatible with 128-bit
// downstream consumers and turns runaway multiplier configs into rejections.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Season is one distribution period. IDs are sequential starting at 1.
type Season struct {
	ID             uint64   `json:"id"`
	Title          string   `json:"title"`
	StartTime      int64    `json:"startTime"`
	EndTime        int64    `json:"endTime"`
	MinHolding     *big.Int `json:"minHolding"`
	CommitmentRoot [32]byte `json:"commitmentRoot"`
	SeasonCap      *big.Int `json:"seasonCap"`
	BaseDailyUnit  *big.Int `json:"baseDailyUnit"`
	Distributed    *big.Int `json:"distributed"`
	// UnclaimedWithdrawn records that the post-season sweep already ran.
	// Distributed is never reset, so the flag is what makes the sweep
	// exactly-once.
	UnclaimedWithdrawn bool `json:"unclaimedWithdrawn"`
}

// Clone returns a deep copy of the season.
func (s *Season) Clone() *Season {
	if s == nil {
		return nil
	}
	clone := *s
	clone.MinHolding = cloneBigInt(s.MinHolding)
	clone.SeasonCap = cloneBigInt(s.SeasonCap)
	clone.BaseDailyUnit = cloneBigInt(s.BaseDailyUnit)
	clone.Distributed = cloneBigInt(s.Distributed)
	return &clone
}

// Ended reports whether the season is terminal at the supplied time.
func (s *Season) Ended(now int64) bool {
	if s == nil {
		return true
	}
	return now > s.EndTime
}

// QuotaState tracks one account's allowance inside one season. Records are
// created lazily on first use; a missing record means "never touched", which
// is distinct from a record reset to zero.
type QuotaState struct {
	Account        [20]byte `json:"account"`
	SeasonID       uint64   `json:"seasonId"`
	TotalAllowance *big.Int `json:"totalAllowance"`
	UsedAllowance  *big.Int `json:"usedAllowance"`
	LastReset      int64    `json:"lastReset"`
	LifetimeTipped *big.Int `json:"lifetimeTipped"`
}

// Clone returns a deep copy of the quota record.
func (q *QuotaState) Clone() *QuotaState {
	if q == nil {
		return nil
	}
	clone := *q
	clone.TotalAllowance = cloneBigInt(q.TotalAllowance)
	clone.UsedAllowance = cloneBigInt(q.UsedAllowance)
	clone.LifetimeTipped = cloneBigInt(q.LifetimeTipped)
	return &clone
}

// LabelProfile is an administrator-managed multiplier tier. Labels are
// soft-disabled via Active, never deleted.
type LabelProfile struct {
	ID         [32]byte `json:"id"`
	Name       string   `json:"name"`
	Multiplier uint64   `json:"multiplier"`
	Active     bool     `json:"active"`
}

// AccountProfile assigns a label to an account. An account with no profile or
// an inactive one cannot tip.
type AccountProfile struct {
	Account [20]byte `json:"account"`
	LabelID [32]byte `json:"labelId"`
	Active  bool     `json:"active"`
}

// DeriveLabelID hashes a human label name into its storage identifier.
func DeriveLabelID(name string) [32]byte {
	normalized := strings.ToLower(strings.TrimSpace(name))
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256([]byte(normalized)))
	return id
}

func dayIndex(ts int64) int64 {
	if ts < 0 {
		return 0
	}
	return ts / secondsPerDay
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func isZeroHash(h [32]byte) bool {
	var zero [32]byte
	return h == zero
}

// validAmount accepts strictly positive amounts within the stored ceiling.
func validAmount(v *big.Int) bool {
	return v != nil && v.Sign() > 0 && v.Cmp(maxAmount) <= 0
}
