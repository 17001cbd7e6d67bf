package tipping_test

import (
	"bytes"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"tipvault/core/state"
	"tipvault/core/types"
	"tipvault/native/tipping"
	"tipvault/storage"
)

// buildTree constructs a sorted-pair commitment over the supplied leaves and
// returns the root plus a proof for each leaf index.
func buildTree(t *testing.T, leaves [][32]byte) ([32]byte, [][][32]byte) {
	t.Helper()
	if len(leaves) == 0 {
		t.Fatal("no leaves")
	}
	proofs := make([][][32]byte, len(leaves))
	positions := make([]int, len(leaves))
	for i := range leaves {
		positions[i] = i
	}
	level := append([][32]byte{}, leaves...)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		for leaf, pos := range positions {
			sibling := pos ^ 1
			proofs[leaf] = append(proofs[leaf], level[sibling])
			positions[leaf] = pos / 2
		}
		level = next
	}
	return level[0], proofs
}

func hashPair(a, b [32]byte) [32]byte {
	var out [32]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(out[:], ethcrypto.Keccak256(a[:], b[:]))
	} else {
		copy(out[:], ethcrypto.Keccak256(b[:], a[:]))
	}
	return out
}

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

// fixture wires a manager-backed registry, ledger, and gateway the way the
// daemon does, with a controllable clock.
type fixture struct {
	st       *state.Manager
	registry *tipping.Registry
	ledger   *tipping.Ledger
	gateway  *tipping.Gateway

	now int64

	admin    [20]byte
	custody  [20]byte
	treasury [20]byte
}

func newFixture(t *testing.T, programCap int64) *fixture {
	t.Helper()
	f := &fixture{
		st:       state.NewManager(storage.NewMemDB()),
		now:      1_700_000_000,
		admin:    testAddr(0xAD),
		custody:  testAddr(0xC0),
		treasury: testAddr(0x71),
	}
	if err := f.st.SetRole(tipping.RoleAdmin, f.admin[:]); err != nil {
		t.Fatalf("seed admin role: %v", err)
	}

	clock := func() int64 { return f.now }

	f.registry = tipping.NewRegistry(f.st)
	f.registry.SetEmitter(f.st)
	f.registry.SetPauses(f.st)
	f.registry.SetNowFunc(clock)

	f.ledger = tipping.NewLedger(f.st)
	f.ledger.SetEmitter(f.st)
	f.ledger.SetPauses(f.st)
	f.ledger.SetNowFunc(clock)
	f.ledger.SetCustody(f.custody)
	f.ledger.SetTreasury(f.treasury)

	if programCap > 0 {
		cap := big.NewInt(programCap)
		f.registry.SetProgramCap(cap)
		f.ledger.SetProgramCap(cap)
	}

	gatewayAddr := testAddr(0x6A)
	f.gateway = tipping.NewGateway(f.st, gatewayAddr)
	f.gateway.SetEmitter(f.st)
	f.gateway.SetPauses(f.st)
	if err := f.ledger.SetGatewayAddress(f.admin, gatewayAddr); err != nil {
		t.Fatalf("set gateway address: %v", err)
	}
	if err := f.gateway.SetLedger(f.admin, f.ledger); err != nil {
		t.Fatalf("set ledger: %v", err)
	}
	return f
}

func (f *fixture) fundCustody(t *testing.T, amount int64) {
	t.Helper()
	f.setBalance(t, f.custody, amount)
}

func (f *fixture) setBalance(t *testing.T, addr [20]byte, amount int64) {
	t.Helper()
	acc, err := f.st.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc == nil {
		acc = &types.Account{}
	}
	acc.Balance = big.NewInt(amount)
	if err := f.st.PutAccount(addr[:], acc); err != nil {
		t.Fatalf("put account: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, addr [20]byte) *big.Int {
	t.Helper()
	acc, err := f.st.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc == nil || acc.Balance == nil {
		return big.NewInt(0)
	}
	return acc.Balance
}

// addSeason creates a season starting now and lasting the given number of
// days, then advances the clock past the start.
func (f *fixture) addSeason(t *testing.T, cap, unit int64, root [32]byte, days int64) *tipping.Season {
	t.Helper()
	season, err := f.registry.CreateSeason(f.admin, "season", f.now, f.now+days*86_400, nil, big.NewInt(cap), big.NewInt(unit), root)
	if err != nil {
		t.Fatalf("create season: %v", err)
	}
	return season
}

// enroll registers an eligible tipper: active profile under an active label
// plus a membership commitment for (account, bound).
func (f *fixture) enroll(t *testing.T, account [20]byte, multiplier uint64) [32]byte {
	t.Helper()
	labelID, err := f.gateway.UpsertLabel(f.admin, [32]byte{}, "supporter", multiplier, true)
	if err != nil {
		t.Fatalf("upsert label: %v", err)
	}
	if err := f.gateway.SetAccountProfile(f.admin, account, labelID, true); err != nil {
		t.Fatalf("set profile: %v", err)
	}
	return labelID
}
