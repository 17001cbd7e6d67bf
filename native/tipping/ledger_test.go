package tipping_test

import (
	"errors"
	"math/big"
	"testing"

	"tipvault/native/tipping"
)

func TestDebitScenarioDailyWindow(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 10_000)

	account := testAddr(0x01)
	recipient := testAddr(0x02)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, proofs := buildTree(t, [][32]byte{leaf})
	f.addSeason(t, 100_000, 100, root, 30)

	caller := f.gateway.Address()

	// First tip of 150 against allowance 100*2=200.
	if err := f.ledger.DebitAndTransfer(caller, account, recipient, 1, big.NewInt(150), 2, bound, proofs[0]); err != nil {
		t.Fatalf("first tip failed: %v", err)
	}
	if got := f.balance(t, recipient); got.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("recipient balance = %s, want 150", got)
	}

	// Second tip of 60 the same day: 150+60 > 200.
	err := f.ledger.DebitAndTransfer(caller, account, recipient, 1, big.NewInt(60), 2, bound, proofs[0])
	if !errors.Is(err, tipping.ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}

	// After day rollover the allowance resets to exactly 200.
	f.now += 86_400
	avail, err := f.ledger.Allowance(account, 1, 2)
	if err != nil {
		t.Fatalf("allowance query failed: %v", err)
	}
	if avail.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("allowance after rollover = %s, want 200", avail)
	}
	if err := f.ledger.DebitAndTransfer(caller, account, recipient, 1, big.NewInt(180), 2, bound, proofs[0]); err != nil {
		t.Fatalf("tip after rollover failed: %v", err)
	}

	// The reset ran once: 180 of the fresh 200 is spent, no second reset
	// within the same window.
	avail, err = f.ledger.Allowance(account, 1, 2)
	if err != nil {
		t.Fatalf("allowance query failed: %v", err)
	}
	if avail.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("remaining allowance = %s, want 20", avail)
	}
}

func TestSeasonCapSharedAcrossAccounts(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 10_000)

	accountA := testAddr(0x0A)
	accountB := testAddr(0x0B)
	recipient := testAddr(0x0C)
	bound := big.NewInt(5_000)
	leafA := tipping.ComputeLeaf(accountA, bound)
	leafB := tipping.ComputeLeaf(accountB, bound)
	root, proofs := buildTree(t, [][32]byte{leafA, leafB})
	f.addSeason(t, 500, 400, root, 30)

	caller := f.gateway.Address()
	if err := f.ledger.DebitAndTransfer(caller, accountA, recipient, 1, big.NewInt(300), 1, bound, proofs[0]); err != nil {
		t.Fatalf("first account tip failed: %v", err)
	}
	err := f.ledger.DebitAndTransfer(caller, accountB, recipient, 1, big.NewInt(300), 1, bound, proofs[1])
	if !errors.Is(err, tipping.ErrSeasonCapExceeded) {
		t.Fatalf("expected season cap rejection, got %v", err)
	}
	distributed, err := f.ledger.SeasonDistributed(1)
	if err != nil {
		t.Fatalf("season distributed query failed: %v", err)
	}
	if distributed.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("season distributed = %s, want 300", distributed)
	}
}

func TestLifetimeBoundCheckedBeforeSeasonCap(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 10_000)

	account := testAddr(0x01)
	recipient := testAddr(0x02)
	bound := big.NewInt(100)
	leaf := tipping.ComputeLeaf(account, bound)
	root, proofs := buildTree(t, [][32]byte{leaf})
	// A 150 tip breaches both the lifetime bound (100) and the season cap
	// (120); the bound must win so one account cannot burn shared capacity.
	f.addSeason(t, 120, 1_000, root, 30)

	err := f.ledger.DebitAndTransfer(f.gateway.Address(), account, recipient, 1, big.NewInt(150), 1, bound, proofs[0])
	if !errors.Is(err, tipping.ErrLifetimeBoundExceeded) {
		t.Fatalf("expected lifetime bound rejection, got %v", err)
	}
}

func TestProgramCapSpansSeasons(t *testing.T) {
	f := newFixture(t, 700)
	f.fundCustody(t, 10_000)

	account := testAddr(0x01)
	recipient := testAddr(0x02)
	bound := big.NewInt(100_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, proofs := buildTree(t, [][32]byte{leaf})
	f.addSeason(t, 500, 1_000, root, 10)

	caller := f.gateway.Address()
	if err := f.ledger.DebitAndTransfer(caller, account, recipient, 1, big.NewInt(500), 1, bound, proofs[0]); err != nil {
		t.Fatalf("season 1 tip failed: %v", err)
	}

	// Season 2 can only carry what is left under the program cap.
	f.now += 11 * 86_400
	if _, err := f.registry.CreateSeason(f.admin, "s2", f.now, f.now+10*86_400, nil, big.NewInt(500), big.NewInt(1_000), root); !errors.Is(err, tipping.ErrProgramCapExceeded) {
		t.Fatalf("expected program cap rejection for oversize season, got %v", err)
	}
	if _, err := f.registry.CreateSeason(f.admin, "s2", f.now, f.now+10*86_400, nil, big.NewInt(200), big.NewInt(1_000), root); err != nil {
		t.Fatalf("create season 2 failed: %v", err)
	}

	if err := f.ledger.DebitAndTransfer(caller, account, recipient, 2, big.NewInt(150), 1, bound, proofs[0]); err != nil {
		t.Fatalf("season 2 tip failed: %v", err)
	}

	// The ledger re-checks the program ceiling on every debit, so a cap
	// tightened after admission still binds.
	f.ledger.SetProgramCap(big.NewInt(690))
	err := f.ledger.DebitAndTransfer(caller, account, recipient, 2, big.NewInt(41), 1, bound, proofs[0])
	if !errors.Is(err, tipping.ErrProgramCapExceeded) {
		t.Fatalf("expected program cap rejection, got %v", err)
	}
	f.ledger.SetProgramCap(big.NewInt(700))

	remaining, err := f.registry.RemainingProgramCap()
	if err != nil {
		t.Fatalf("remaining program cap query failed: %v", err)
	}
	if remaining.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("remaining program cap = %s, want 50", remaining)
	}
}

func TestDebitRejectsNonGatewayCaller(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 1_000)

	account := testAddr(0x01)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, proofs := buildTree(t, [][32]byte{leaf})
	f.addSeason(t, 1_000, 100, root, 30)

	err := f.ledger.DebitAndTransfer(testAddr(0x99), account, testAddr(0x02), 1, big.NewInt(10), 1, bound, proofs[0])
	if !errors.Is(err, tipping.ErrNotGateway) {
		t.Fatalf("expected gateway caller rejection, got %v", err)
	}
}

func TestIneligibleAccountCannotWarmQuotaState(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 1_000)

	account := testAddr(0x01)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, _ := buildTree(t, [][32]byte{leaf})
	f.addSeason(t, 1_000, 100, root, 30)

	// Invalid proof: eligibility fails before any allowance math runs.
	badProof := [][32]byte{{0x01}}
	err := f.ledger.DebitAndTransfer(f.gateway.Address(), account, testAddr(0x02), 1, big.NewInt(10), 1, bound, badProof)
	if !errors.Is(err, tipping.ErrProofInvalid) {
		t.Fatalf("expected proof rejection, got %v", err)
	}
	if _, ok, err := f.st.QuotaGet(account, 1); err != nil {
		t.Fatalf("quota query failed: %v", err)
	} else if ok {
		t.Fatal("rejected caller advanced quota state")
	}
}

func TestStaleProofRejectedAfterRootRotation(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 1_000)

	account := testAddr(0x01)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	oldRoot, oldProofs := buildTree(t, [][32]byte{leaf, tipping.ComputeLeaf(testAddr(0x02), bound)})
	f.addSeason(t, 1_000, 100, oldRoot, 30)

	caller := f.gateway.Address()
	if err := f.ledger.DebitAndTransfer(caller, account, testAddr(0x03), 1, big.NewInt(10), 1, bound, oldProofs[0]); err != nil {
		t.Fatalf("tip under original root failed: %v", err)
	}

	newRoot, _ := buildTree(t, [][32]byte{tipping.ComputeLeaf(testAddr(0x04), bound)})
	if err := f.registry.UpdateCommitmentRoot(f.admin, 1, newRoot); err != nil {
		t.Fatalf("root rotation failed: %v", err)
	}
	err := f.ledger.DebitAndTransfer(caller, account, testAddr(0x03), 1, big.NewInt(10), 1, bound, oldProofs[0])
	if !errors.Is(err, tipping.ErrProofInvalid) {
		t.Fatalf("expected stale proof rejection, got %v", err)
	}
}

func TestTransferFailureRollsBackDebit(t *testing.T) {
	f := newFixture(t, 0)
	// Custody deliberately underfunded.
	f.fundCustody(t, 5)

	account := testAddr(0x01)
	recipient := testAddr(0x02)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, proofs := buildTree(t, [][32]byte{leaf})
	f.addSeason(t, 1_000, 100, root, 30)

	err := f.ledger.DebitAndTransfer(f.gateway.Address(), account, recipient, 1, big.NewInt(50), 1, bound, proofs[0])
	if !errors.Is(err, tipping.ErrInsufficientCustody) {
		t.Fatalf("expected custody rejection, got %v", err)
	}
	// No partial debit may persist: counters and quota revert together.
	if _, ok, qerr := f.st.QuotaGet(account, 1); qerr != nil {
		t.Fatalf("quota query failed: %v", qerr)
	} else if ok {
		t.Fatal("quota mutation survived failed transfer")
	}
	distributed, err := f.ledger.SeasonDistributed(1)
	if err != nil {
		t.Fatalf("season distributed query failed: %v", err)
	}
	if distributed.Sign() != 0 {
		t.Fatalf("season distributed = %s after rollback, want 0", distributed)
	}
	if got := f.balance(t, f.custody); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("custody balance changed: %s", got)
	}
}

func TestMinHoldingGatesEligibility(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 1_000)

	account := testAddr(0x01)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, proofs := buildTree(t, [][32]byte{leaf})
	if _, err := f.registry.CreateSeason(f.admin, "gated", f.now, f.now+30*86_400, big.NewInt(500), big.NewInt(1_000), big.NewInt(100), root); err != nil {
		t.Fatalf("create season: %v", err)
	}

	err := f.ledger.DebitAndTransfer(f.gateway.Address(), account, testAddr(0x02), 1, big.NewInt(10), 1, bound, proofs[0])
	if !errors.Is(err, tipping.ErrInsufficientHolding) {
		t.Fatalf("expected holding rejection, got %v", err)
	}

	f.setBalance(t, account, 500)
	if err := f.ledger.DebitAndTransfer(f.gateway.Address(), account, testAddr(0x02), 1, big.NewInt(10), 1, bound, proofs[0]); err != nil {
		t.Fatalf("tip with sufficient holding failed: %v", err)
	}
}

func TestDebitAfterSeasonEndRejected(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 1_000)

	account := testAddr(0x01)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, proofs := buildTree(t, [][32]byte{leaf})
	f.addSeason(t, 1_000, 100, root, 3)

	f.now += 4 * 86_400
	err := f.ledger.DebitAndTransfer(f.gateway.Address(), account, testAddr(0x02), 1, big.NewInt(10), 1, bound, proofs[0])
	if !errors.Is(err, tipping.ErrSeasonEnded) {
		t.Fatalf("expected season end rejection, got %v", err)
	}
	ended, err := f.registry.IsSeasonEnded(1)
	if err != nil {
		t.Fatalf("is season ended query failed: %v", err)
	}
	if !ended {
		t.Fatal("season should report as ended")
	}
}

func TestWithdrawUnclaimedLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 1_000)

	account := testAddr(0x01)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, proofs := buildTree(t, [][32]byte{leaf})
	f.addSeason(t, 800, 400, root, 10)

	caller := f.gateway.Address()
	if err := f.ledger.DebitAndTransfer(caller, account, testAddr(0x02), 1, big.NewInt(300), 1, bound, proofs[0]); err != nil {
		t.Fatalf("tip failed: %v", err)
	}

	// Still inside the lock window.
	f.now += 10*86_400 + 1
	if _, err := f.ledger.WithdrawUnclaimed(f.admin, 1); !errors.Is(err, tipping.ErrWithdrawLocked) {
		t.Fatalf("expected lock rejection, got %v", err)
	}

	// Past end + lock period: the full remainder moves to the treasury.
	f.now += 90 * 86_400
	swept, err := f.ledger.WithdrawUnclaimed(f.admin, 1)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if swept.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("swept %s, want 500", swept)
	}
	if got := f.balance(t, f.treasury); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("treasury balance = %s, want 500", got)
	}

	// The distributed counter is untouched and the sweep is exactly-once.
	distributed, err := f.ledger.SeasonDistributed(1)
	if err != nil {
		t.Fatalf("season distributed query failed: %v", err)
	}
	if distributed.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("distributed = %s, want 300", distributed)
	}
	if _, err := f.ledger.WithdrawUnclaimed(f.admin, 1); !errors.Is(err, tipping.ErrAlreadyWithdrawn) {
		t.Fatalf("expected exactly-once rejection, got %v", err)
	}

	// Non-admins cannot sweep.
	if _, err := f.ledger.WithdrawUnclaimed(testAddr(0x55), 1); !errors.Is(err, tipping.ErrUnauthorized) {
		t.Fatalf("expected authorization rejection, got %v", err)
	}
}

func TestAllowanceReadDoesNotCommitReset(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 1_000)

	account := testAddr(0x01)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, _ := buildTree(t, [][32]byte{leaf})
	f.addSeason(t, 1_000, 100, root, 30)

	avail, err := f.ledger.Allowance(account, 1, 3)
	if err != nil {
		t.Fatalf("allowance query failed: %v", err)
	}
	if avail.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("fresh allowance = %s, want 300", avail)
	}
	if _, ok, err := f.st.QuotaGet(account, 1); err != nil {
		t.Fatalf("quota query failed: %v", err)
	} else if ok {
		t.Fatal("read-only allowance query persisted quota state")
	}
}

func TestPauseDisablesMutatingEntryPoints(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 1_000)

	account := testAddr(0x01)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, proofs := buildTree(t, [][32]byte{leaf})
	f.addSeason(t, 1_000, 100, root, 30)

	if err := f.registry.Pause(f.admin); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	err := f.ledger.DebitAndTransfer(f.gateway.Address(), account, testAddr(0x02), 1, big.NewInt(10), 1, bound, proofs[0])
	if err == nil {
		t.Fatal("debit succeeded while paused")
	}

	// Reads stay available while paused.
	if _, err := f.registry.SeasonByID(1); err != nil {
		t.Fatalf("read failed while paused: %v", err)
	}

	if err := f.registry.Unpause(f.admin); err != nil {
		t.Fatalf("unpause failed: %v", err)
	}
	if err := f.ledger.DebitAndTransfer(f.gateway.Address(), account, testAddr(0x02), 1, big.NewInt(10), 1, bound, proofs[0]); err != nil {
		t.Fatalf("debit after unpause failed: %v", err)
	}
}

func TestAllowanceMultiplierOverflowRejected(t *testing.T) {
	f := newFixture(t, 0)
	f.fundCustody(t, 1_000)

	account := testAddr(0x01)
	bound := big.NewInt(1_000)
	leaf := tipping.ComputeLeaf(account, bound)
	root, _ := buildTree(t, [][32]byte{leaf})

	// Base unit close to the ceiling: any multiplier above 1 overflows.
	huge := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	if _, err := f.registry.CreateSeason(f.admin, "huge", f.now, f.now+30*86_400, nil, big.NewInt(1_000), huge, root); err != nil {
		t.Fatalf("create season: %v", err)
	}
	if _, err := f.ledger.Allowance(account, 1, 2); !errors.Is(err, tipping.ErrAmountTooLarge) {
		t.Fatalf("expected overflow rejection, got %v", err)
	}
}
