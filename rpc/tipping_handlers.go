package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	nativecommon "tipvault/native/common"
	"tipvault/native/tipping"
	"tipvault/observability"
)

type createSeasonParams struct {
	Caller         string `json:"caller"`
	Title          string `json:"title"`
	StartTime      int64  `json:"startTime"`
	EndTime        int64  `json:"endTime"`
	MinHolding     string `json:"minHolding,omitempty"`
	SeasonCap      string `json:"seasonCap"`
	BaseDailyUnit  string `json:"baseDailyUnit"`
	CommitmentRoot string `json:"commitmentRoot,omitempty"`
}

type seasonFieldParams struct {
	Caller   string `json:"caller"`
	SeasonID uint64 `json:"seasonId"`
	Value    string `json:"value"`
}

type seasonQueryParams struct {
	SeasonID uint64 `json:"seasonId"`
}

type allowanceParams struct {
	Account  string `json:"account"`
	SeasonID uint64 `json:"seasonId"`
}

type submitTipParams struct {
	Tipper        string   `json:"tipper"`
	Recipient     string   `json:"recipient"`
	Amount        string   `json:"amount"`
	SeasonID      uint64   `json:"seasonId"`
	LifetimeBound string   `json:"lifetimeBound"`
	Proof         []string `json:"proof"`
}

type submitTipsBatchParams struct {
	Tipper        string   `json:"tipper"`
	Recipients    []string `json:"recipients"`
	Amounts       []string `json:"amounts"`
	SeasonID      uint64   `json:"seasonId"`
	LifetimeBound string   `json:"lifetimeBound"`
	Proof         []string `json:"proof"`
}

type upsertLabelParams struct {
	Caller     string `json:"caller"`
	LabelID    string `json:"labelId,omitempty"`
	Name       string `json:"name"`
	Multiplier uint64 `json:"multiplier"`
	Active     bool   `json:"active"`
}

type accountProfileParams struct {
	Caller  string `json:"caller"`
	Account string `json:"account"`
	LabelID string `json:"labelId"`
	Active  bool   `json:"active"`
}

type blacklistParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	Flag      bool   `json:"flag"`
}

type addressParams struct {
	Caller string `json:"caller"`
}

type seasonResult struct {
	ID             uint64 `json:"seasonId"`
	Title          string `json:"title"`
	StartTime      int64  `json:"startTime"`
	EndTime        int64  `json:"endTime"`
	MinHolding     string `json:"minHolding"`
	SeasonCap      string `json:"seasonCap"`
	BaseDailyUnit  string `json:"baseDailyUnit"`
	CommitmentRoot string `json:"commitmentRoot"`
	Distributed    string `json:"distributed"`
}

type labelResult struct {
	LabelID    string `json:"labelId"`
	Name       string `json:"name"`
	Multiplier uint64 `json:"multiplier"`
	Active     bool   `json:"active"`
}

type profileResult struct {
	Account string `json:"account"`
	LabelID string `json:"labelId"`
	Active  bool   `json:"active"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func decodeAddress(value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hex address %q", value)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("address %q must be 20 bytes", value)
	}
	copy(out[:], raw)
	return out, nil
}

func decodeHash(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return out, nil
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hex hash %q", value)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("hash %q must be 32 bytes", value)
	}
	copy(out[:], raw)
	return out, nil
}

func decodeAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", value)
	}
	return amount, nil
}

func decodeProof(values []string) ([][32]byte, error) {
	proof := make([][32]byte, len(values))
	for i, value := range values {
		node, err := decodeHash(value)
		if err != nil {
			return nil, fmt.Errorf("proof[%d]: %w", i, err)
		}
		proof[i] = node
	}
	return proof, nil
}

func encodeAddress(addr [20]byte) string { return "0x" + hex.EncodeToString(addr[:]) }
func encodeHash(h [32]byte) string       { return "0x" + hex.EncodeToString(h[:]) }

func formatSeason(season *tipping.Season) *seasonResult {
	return &seasonResult{
		ID:             season.ID,
		Title:          season.Title,
		StartTime:      season.StartTime,
		EndTime:        season.EndTime,
		MinHolding:     season.MinHolding.String(),
		SeasonCap:      season.SeasonCap.String(),
		BaseDailyUnit:  season.BaseDailyUnit.String(),
		CommitmentRoot: encodeHash(season.CommitmentRoot),
		Distributed:    season.Distributed.String(),
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status, code := errorCode(err)
	writeError(w, status, id, code, err.Error(), nil)
}

func (s *Server) handleCreateSeason(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createSeasonParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	minHolding, err := decodeAmount(params.MinHolding)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid minHolding", err.Error())
		return
	}
	seasonCap, err := decodeAmount(params.SeasonCap)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seasonCap", err.Error())
		return
	}
	baseDailyUnit, err := decodeAmount(params.BaseDailyUnit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid baseDailyUnit", err.Error())
		return
	}
	root, err := decodeHash(params.CommitmentRoot)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid commitmentRoot", err.Error())
		return
	}
	var season *tipping.Season
	err = s.mutate(func() error {
		created, createErr := s.registry.CreateSeason(caller, params.Title, params.StartTime, params.EndTime, minHolding, seasonCap, baseDailyUnit, root)
		season = created
		return createErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.logger.Info("season created", "seasonId", season.ID, "title", season.Title)
	writeResult(w, req.ID, formatSeason(season))
}

func (s *Server) handleUpdateMinHolding(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleSeasonFieldUpdate(w, req, func(caller [20]byte, seasonID uint64, value *big.Int) error {
		return s.registry.UpdateMinHolding(caller, seasonID, value)
	})
}

func (s *Server) handleUpdateBaseDailyUnit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleSeasonFieldUpdate(w, req, func(caller [20]byte, seasonID uint64, value *big.Int) error {
		return s.registry.UpdateBaseDailyUnit(caller, seasonID, value)
	})
}

func (s *Server) handleSeasonFieldUpdate(w http.ResponseWriter, req *RPCRequest, update func([20]byte, uint64, *big.Int) error) {
	var params seasonFieldParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	value, err := decodeAmount(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid value", err.Error())
		return
	}
	if err := s.mutate(func() error { return update(caller, params.SeasonID, value) }); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleUpdateCommitmentRoot(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params seasonFieldParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	root, err := decodeHash(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid commitment root", err.Error())
		return
	}
	if err := s.mutate(func() error { return s.registry.UpdateCommitmentRoot(caller, params.SeasonID, root) }); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetSeason(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params seasonQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	season, err := s.registry.SeasonByID(params.SeasonID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSeason(season))
}

func (s *Server) handleIsSeasonEnded(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params seasonQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	ended, err := s.registry.IsSeasonEnded(params.SeasonID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ended)
}

func (s *Server) handleRemainingProgramCap(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	remaining, err := s.registry.RemainingProgramCap()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	if remaining == nil {
		writeResult(w, req.ID, nil)
		return
	}
	observability.Tipping().RecordCapRemaining("program", remaining)
	writeResult(w, req.ID, remaining.String())
}

func (s *Server) handleSeasonDistributed(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params seasonQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	distributed, err := s.ledger.SeasonDistributed(params.SeasonID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, distributed.String())
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params allowanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	account, err := decodeAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account address", err.Error())
		return
	}
	multiplier := uint64(1)
	profile, ok, err := s.gateway.AccountProfileFor(account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "profile lookup failed", err.Error())
		return
	}
	if ok && profile.Active {
		label, labelErr := s.gateway.Label(profile.LabelID)
		switch {
		case labelErr == nil:
			if label.Active {
				multiplier = label.Multiplier
			}
		case errors.Is(labelErr, tipping.ErrLabelNotFound):
			// A dangling label reference degrades to the base multiplier.
		default:
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "label lookup failed", labelErr.Error())
			return
		}
	}
	allowance, err := s.ledger.Allowance(account, params.SeasonID, multiplier)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, allowance.String())
}

func (s *Server) handleSubmitTip(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params submitTipParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tipper, err := decodeAddress(params.Tipper)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tipper address", err.Error())
		return
	}
	recipient, err := decodeAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	amount, err := decodeAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	bound, err := decodeAmount(params.LifetimeBound)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lifetimeBound", err.Error())
		return
	}
	proof, err := decodeProof(params.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid proof", err.Error())
		return
	}
	started := time.Now()
	err = s.mutate(func() error {
		return s.gateway.SubmitTip(tipper, recipient, amount, params.SeasonID, bound, proof)
	})
	observability.Tipping().ObserveDebit(time.Since(started))
	if err != nil {
		observability.Tipping().RecordRejection("tip", rejectionReason(err))
		s.writeEngineError(w, req.ID, err)
		return
	}
	observability.Tipping().RecordTip("tip")
	s.logger.Info("tip settled", "tipper", params.Tipper, "recipient", params.Recipient, "amount", params.Amount)
	writeResult(w, req.ID, true)
}

func (s *Server) handleSubmitTipsBatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params submitTipsBatchParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	tipper, err := decodeAddress(params.Tipper)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid tipper address", err.Error())
		return
	}
	recipients := make([][20]byte, len(params.Recipients))
	for i, value := range params.Recipients {
		recipient, addrErr := decodeAddress(value)
		if addrErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("invalid recipients[%d]", i), addrErr.Error())
			return
		}
		recipients[i] = recipient
	}
	amounts := make([]*big.Int, len(params.Amounts))
	for i, value := range params.Amounts {
		amount, amtErr := decodeAmount(value)
		if amtErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("invalid amounts[%d]", i), amtErr.Error())
			return
		}
		amounts[i] = amount
	}
	bound, err := decodeAmount(params.LifetimeBound)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid lifetimeBound", err.Error())
		return
	}
	proof, err := decodeProof(params.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid proof", err.Error())
		return
	}
	observability.Tipping().ObserveBatch(len(recipients))
	err = s.mutate(func() error {
		return s.gateway.SubmitTipsBatch(tipper, recipients, amounts, params.SeasonID, bound, proof)
	})
	if err != nil {
		observability.Tipping().RecordRejection("batch", rejectionReason(err))
		s.writeEngineError(w, req.ID, err)
		return
	}
	observability.Tipping().RecordTip("batch")
	writeResult(w, req.ID, true)
}

func (s *Server) handleWithdrawUnclaimed(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller   string `json:"caller"`
		SeasonID uint64 `json:"seasonId"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	var swept *big.Int
	err = s.mutate(func() error {
		amount, sweepErr := s.ledger.WithdrawUnclaimed(caller, params.SeasonID)
		swept = amount
		return sweepErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	observability.Tipping().RecordSweep()
	s.logger.Info("unclaimed swept", "seasonId", params.SeasonID, "amount", swept.String())
	writeResult(w, req.ID, swept.String())
}

func (s *Server) handleUpsertLabel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params upsertLabelParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	labelID, err := decodeHash(params.LabelID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid labelId", err.Error())
		return
	}
	var id [32]byte
	err = s.mutate(func() error {
		upserted, upsertErr := s.gateway.UpsertLabel(caller, labelID, params.Name, params.Multiplier, params.Active)
		id = upserted
		return upsertErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, encodeHash(id))
}

func (s *Server) handleSetAccountProfile(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params accountProfileParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	account, err := decodeAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account address", err.Error())
		return
	}
	labelID, err := decodeHash(params.LabelID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid labelId", err.Error())
		return
	}
	if err := s.mutate(func() error { return s.gateway.SetAccountProfile(caller, account, labelID, params.Active) }); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetRecipientBlacklist(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params blacklistParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	recipient, err := decodeAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient address", err.Error())
		return
	}
	if err := s.mutate(func() error { return s.gateway.SetRecipientBlacklist(caller, recipient, params.Flag) }); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetLabel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		LabelID string `json:"labelId,omitempty"`
		Name    string `json:"name,omitempty"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	labelID, err := decodeHash(params.LabelID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid labelId", err.Error())
		return
	}
	if labelID == ([32]byte{}) {
		labelID = tipping.DeriveLabelID(params.Name)
	}
	label, err := s.gateway.Label(labelID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &labelResult{
		LabelID:    encodeHash(label.ID),
		Name:       label.Name,
		Multiplier: label.Multiplier,
		Active:     label.Active,
	})
}

func (s *Server) handleGetAccountProfile(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Account string `json:"account"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	account, err := decodeAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account address", err.Error())
		return
	}
	profile, ok, err := s.gateway.AccountProfileFor(account)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, &profileResult{
		Account: encodeAddress(profile.Account),
		LabelID: encodeHash(profile.LabelID),
		Active:  profile.Active,
	})
}

func (s *Server) handleSetGatewayAddress(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller  string `json:"caller"`
		Gateway string `json:"gateway"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	gatewayAddr, err := decodeAddress(params.Gateway)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid gateway address", err.Error())
		return
	}
	s.mu.Lock()
	err = s.ledger.SetGatewayAddress(caller, gatewayAddr)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	s.logger.Info("gateway address updated", "gateway", params.Gateway)
	writeResult(w, req.ID, true)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handlePauseToggle(w, req, true)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handlePauseToggle(w, req, false)
}

func (s *Server) handlePauseToggle(w http.ResponseWriter, req *RPCRequest, paused bool) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	err = s.mutate(func() error {
		if paused {
			return s.registry.Pause(caller)
		}
		return s.registry.Unpause(caller)
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	observability.Tipping().SetPause(paused)
	writeResult(w, req.ID, true)
}

// rejectionReason maps an engine error onto a fixed metrics label so series
// cardinality stays bounded no matter what detail the error carries.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, tipping.ErrInsufficientAllowance):
		return "insufficient_allowance"
	case errors.Is(err, tipping.ErrLifetimeBoundExceeded):
		return "lifetime_bound_exceeded"
	case errors.Is(err, tipping.ErrSeasonCapExceeded):
		return "season_cap_exceeded"
	case errors.Is(err, tipping.ErrProgramCapExceeded):
		return "program_cap_exceeded"
	case errors.Is(err, tipping.ErrProofInvalid):
		return "proof_invalid"
	case errors.Is(err, tipping.ErrInsufficientHolding):
		return "insufficient_holding"
	case errors.Is(err, tipping.ErrProfileInactive):
		return "profile_inactive"
	case errors.Is(err, tipping.ErrRecipientBlacklisted):
		return "recipient_blacklisted"
	case errors.Is(err, tipping.ErrSeasonNotFound):
		return "season_not_found"
	case errors.Is(err, tipping.ErrSeasonEnded):
		return "season_ended"
	case errors.Is(err, tipping.ErrInsufficientCustody):
		return "insufficient_custody"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "module_paused"
	default:
		return "other"
	}
}
