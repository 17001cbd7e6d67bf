package tipping

import (
	"fmt"
	"math/big"
	"strings"

	"tipvault/core/events"
	"tipvault/core/types"
	nativecommon "tipvault/native/common"
)

// gatewayState covers the policy records the gateway owns: label profiles,
// account profiles, and the recipient blacklist. It never touches season or
// quota records and holds no custody of funds.
type gatewayState interface {
	HasRole(role string, addr []byte) bool
	LabelGet(id [32]byte) (*LabelProfile, bool, error)
	LabelPut(label *LabelProfile) error
	ProfileGet(account [20]byte) (*AccountProfile, bool, error)
	ProfilePut(profile *AccountProfile) error
	Blacklisted(addr [20]byte) (bool, error)
	SetBlacklisted(addr [20]byte, flag bool) error
	GetAccount(addr []byte) (*types.Account, error)
	Snapshot() int
	RevertToSnapshot(revision int)
}

// Gateway is the policy layer in front of the quota ledger. It resolves the
// label multiplier, applies local checks, and delegates the actual debit and
// transfer to the ledger, which re-verifies everything.
type Gateway struct {
	st         gatewayState
	ledger     *Ledger
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	guard      nativecommon.CallGuard
	self       [20]byte
	minHolding *big.Int
	precheck   bool
}

// NewGateway creates a tipping gateway. The self address is what the ledger
// authenticates as the designated gateway caller.
func NewGateway(st gatewayState, self [20]byte) *Gateway {
	return &Gateway{
		st:         st,
		emitter:    events.NoopEmitter{},
		self:       self,
		minHolding: big.NewInt(0),
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (g *Gateway) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		g.emitter = events.NoopEmitter{}
		return
	}
	g.emitter = emitter
}

// SetPauses wires the pause view consulted before every mutating call.
func (g *Gateway) SetPauses(p nativecommon.PauseView) {
	if g == nil {
		return
	}
	g.pauses = p
}

// SetLedger designates the quota ledger the gateway delegates to. Admin-gated
// so the authority component cannot be swapped out silently.
func (g *Gateway) SetLedger(caller [20]byte, ledger *Ledger) error {
	if g.st == nil || !g.st.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if ledger == nil {
		return ErrLedgerNotSet
	}
	g.ledger = ledger
	return nil
}

// SetMinHolding configures the gateway-local holding floor for tippers.
func (g *Gateway) SetMinHolding(v *big.Int) { g.minHolding = cloneBigInt(v) }

// SetPrecheck toggles the non-authoritative allowance precheck. It is a UX
// optimisation only; the ledger's own checks remain the authority.
func (g *Gateway) SetPrecheck(enabled bool) { g.precheck = enabled }

// Address returns the gateway's caller identity.
func (g *Gateway) Address() [20]byte { return g.self }

// SubmitTip validates local policy and delegates the debit and transfer to
// the quota ledger. Amount, season id, bound, and proof are forwarded
// verbatim; only the multiplier is computed here.
func (g *Gateway) SubmitTip(caller [20]byte, recipient [20]byte, amount *big.Int, seasonID uint64, lifetimeBound *big.Int, proof [][32]byte) error {
	if err := g.guard.Enter(); err != nil {
		return err
	}
	defer g.guard.Exit()
	multiplier, err := g.checkPolicy(caller, recipient, amount)
	if err != nil {
		return err
	}
	if g.precheck {
		if err := g.precheckAllowance(caller, seasonID, multiplier, amount); err != nil {
			return err
		}
	}
	if err := g.ledger.DebitAndTransfer(g.self, caller, recipient, seasonID, amount, multiplier, lifetimeBound, proof); err != nil {
		return err
	}
	g.emit(tipSubmittedEvent(caller, recipient, seasonID, amount.String(), multiplier))
	return nil
}

// SubmitTipsBatch applies every tip or none. The same proof and bound cover
// all entries because the membership leaf binds (account, bound), not any
// individual recipient.
func (g *Gateway) SubmitTipsBatch(caller [20]byte, recipients [][20]byte, amounts []*big.Int, seasonID uint64, lifetimeBound *big.Int, proof [][32]byte) error {
	if err := g.guard.Enter(); err != nil {
		return err
	}
	defer g.guard.Exit()
	if len(recipients) != len(amounts) {
		return ErrLengthMismatch
	}
	if len(recipients) == 0 {
		return ErrEmptyBatch
	}
	multiplier := uint64(0)
	total := big.NewInt(0)
	for i := range recipients {
		m, err := g.checkPolicy(caller, recipients[i], amounts[i])
		if err != nil {
			return fmt.Errorf("batch entry %d: %w", i, err)
		}
		multiplier = m
		total = new(big.Int).Add(total, amounts[i])
	}
	if g.precheck {
		if err := g.precheckAllowance(caller, seasonID, multiplier, total); err != nil {
			return err
		}
	}
	revision := g.st.Snapshot()
	for i := range recipients {
		if err := g.ledger.DebitAndTransfer(g.self, caller, recipients[i], seasonID, amounts[i], multiplier, lifetimeBound, proof); err != nil {
			g.st.RevertToSnapshot(revision)
			return fmt.Errorf("batch entry %d: %w", i, err)
		}
	}
	for i := range recipients {
		g.emit(tipSubmittedEvent(caller, recipients[i], seasonID, amounts[i].String(), multiplier))
	}
	return nil
}

// checkPolicy runs the gateway-local validation and resolves the effective
// multiplier. A tipper whose assigned label has been soft-disabled degrades
// to multiplier 1 rather than being rejected.
func (g *Gateway) checkPolicy(caller [20]byte, recipient [20]byte, amount *big.Int) (uint64, error) {
	if err := nativecommon.Guard(g.pauses, ModuleName); err != nil {
		return 0, err
	}
	if g.ledger == nil {
		return 0, ErrLedgerNotSet
	}
	if isZeroAddress(recipient) {
		return 0, ErrZeroAddress
	}
	blacklisted, err := g.st.Blacklisted(recipient)
	if err != nil {
		return 0, err
	}
	if blacklisted {
		return 0, ErrRecipientBlacklisted
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if amount.Cmp(maxAmount) > 0 {
		return 0, ErrAmountTooLarge
	}
	if g.minHolding.Sign() > 0 {
		acc, err := g.st.GetAccount(caller[:])
		if err != nil {
			return 0, err
		}
		acc = types.Ensure(acc)
		if acc.Balance.Cmp(g.minHolding) < 0 {
			return 0, ErrInsufficientHolding
		}
	}
	profile, ok, err := g.st.ProfileGet(caller)
	if err != nil {
		return 0, err
	}
	if !ok || profile == nil || !profile.Active {
		return 0, ErrProfileInactive
	}
	multiplier := uint64(1)
	if label, ok, err := g.st.LabelGet(profile.LabelID); err != nil {
		return 0, err
	} else if ok && label != nil && label.Active && label.Multiplier > 0 {
		multiplier = label.Multiplier
	}
	return multiplier, nil
}

func (g *Gateway) precheckAllowance(caller [20]byte, seasonID uint64, multiplier uint64, needed *big.Int) error {
	available, err := g.ledger.Allowance(caller, seasonID, multiplier)
	if err != nil {
		return err
	}
	if available.Cmp(needed) < 0 {
		return ErrInsufficientAllowance
	}
	return nil
}

// UpsertLabel writes a multiplier tier. A zero id is derived from the name,
// matching the commitment tooling's label addressing.
func (g *Gateway) UpsertLabel(caller [20]byte, id [32]byte, name string, multiplier uint64, active bool) ([32]byte, error) {
	if g.st == nil || !g.st.HasRole(RoleAdmin, caller[:]) {
		return [32]byte{}, ErrUnauthorized
	}
	if err := nativecommon.Guard(g.pauses, ModuleName); err != nil {
		return [32]byte{}, err
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return [32]byte{}, fmt.Errorf("%w: name required", ErrInvalidLabel)
	}
	if multiplier == 0 {
		return [32]byte{}, fmt.Errorf("%w: multiplier must be positive", ErrInvalidLabel)
	}
	if isZeroHash(id) {
		id = DeriveLabelID(trimmed)
	}
	label := &LabelProfile{ID: id, Name: trimmed, Multiplier: multiplier, Active: active}
	if err := g.st.LabelPut(label); err != nil {
		return [32]byte{}, err
	}
	g.emit(labelUpsertedEvent(label))
	return id, nil
}

// SetAccountProfile assigns a label to an account. Activating a profile
// requires the referenced label to exist and be active.
func (g *Gateway) SetAccountProfile(caller [20]byte, account [20]byte, labelID [32]byte, active bool) error {
	if g.st == nil || !g.st.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if err := nativecommon.Guard(g.pauses, ModuleName); err != nil {
		return err
	}
	if isZeroAddress(account) {
		return ErrZeroAddress
	}
	if active {
		label, ok, err := g.st.LabelGet(labelID)
		if err != nil {
			return err
		}
		if !ok || label == nil {
			return ErrLabelNotFound
		}
		if !label.Active {
			return ErrLabelInactive
		}
	}
	profile := &AccountProfile{Account: account, LabelID: labelID, Active: active}
	if err := g.st.ProfilePut(profile); err != nil {
		return err
	}
	g.emit(profileUpdatedEvent(profile))
	return nil
}

// SetRecipientBlacklist toggles a recipient's blacklist flag.
func (g *Gateway) SetRecipientBlacklist(caller [20]byte, recipient [20]byte, flag bool) error {
	if g.st == nil || !g.st.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if err := nativecommon.Guard(g.pauses, ModuleName); err != nil {
		return err
	}
	if isZeroAddress(recipient) {
		return ErrZeroAddress
	}
	return g.st.SetBlacklisted(recipient, flag)
}

// Label returns a copy of the stored label profile.
func (g *Gateway) Label(id [32]byte) (*LabelProfile, error) {
	label, ok, err := g.st.LabelGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || label == nil {
		return nil, ErrLabelNotFound
	}
	clone := *label
	return &clone, nil
}

// AccountProfileFor returns the stored profile for an account, if any.
func (g *Gateway) AccountProfileFor(account [20]byte) (*AccountProfile, bool, error) {
	profile, ok, err := g.st.ProfileGet(account)
	if err != nil {
		return nil, false, err
	}
	if !ok || profile == nil {
		return nil, false, nil
	}
	clone := *profile
	return &clone, true, nil
}

func (g *Gateway) emit(evt *types.Event) {
	if g.emitter == nil || evt == nil {
		return
	}
	g.emitter.Emit(WrapEvent(evt))
}
