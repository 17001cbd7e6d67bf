package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"tipvault/core/state"
	nativecommon "tipvault/native/common"
	"tipvault/native/tipping"
	"tipvault/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeNotFound       = -32004
	codeQuotaExceeded  = -32010
)

// Server exposes the tipping engines over JSON-RPC. Mutating methods are
// serialized and committed or reverted as a unit.
type Server struct {
	st       *state.Manager
	registry *tipping.Registry
	ledger   *tipping.Ledger
	gateway  *tipping.Gateway
	logger   *slog.Logger

	mu        sync.Mutex
	authToken string
}

// NewServer wires the engines into an RPC surface. The admin token guards the
// administrative methods; an empty token disables them.
func NewServer(st *state.Manager, registry *tipping.Registry, ledger *tipping.Ledger, gateway *tipping.Gateway, logger *slog.Logger, authToken string) *Server {
	if strings.TrimSpace(authToken) == "" {
		authToken = strings.TrimSpace(os.Getenv("TIPVAULT_RPC_TOKEN"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		st:        st,
		registry:  registry,
		ledger:    ledger,
		gateway:   gateway,
		logger:    logger,
		authToken: authToken,
	}
}

// Handler returns the JSON-RPC entry point for mounting on an HTTP server.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	w = recorder

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	defer func() {
		observability.RPCMetrics().Observe(req.Method, recorder.status, time.Since(started))
	}()

	switch req.Method {
	case "tipping_createSeason":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleCreateSeason(w, r, req)
	case "tipping_updateMinHolding":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdateMinHolding(w, r, req)
	case "tipping_updateBaseDailyUnit":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdateBaseDailyUnit(w, r, req)
	case "tipping_updateCommitmentRoot":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdateCommitmentRoot(w, r, req)
	case "tipping_getSeason":
		s.handleGetSeason(w, r, req)
	case "tipping_isSeasonEnded":
		s.handleIsSeasonEnded(w, r, req)
	case "tipping_remainingProgramCap":
		s.handleRemainingProgramCap(w, r, req)
	case "tipping_seasonDistributed":
		s.handleSeasonDistributed(w, r, req)
	case "tipping_allowance":
		s.handleAllowance(w, r, req)
	case "tipping_submitTip":
		s.handleSubmitTip(w, r, req)
	case "tipping_submitTipsBatch":
		s.handleSubmitTipsBatch(w, r, req)
	case "tipping_withdrawUnclaimed":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleWithdrawUnclaimed(w, r, req)
	case "tipping_upsertLabel":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpsertLabel(w, r, req)
	case "tipping_setAccountProfile":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetAccountProfile(w, r, req)
	case "tipping_setRecipientBlacklist":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetRecipientBlacklist(w, r, req)
	case "tipping_getLabel":
		s.handleGetLabel(w, r, req)
	case "tipping_getAccountProfile":
		s.handleGetAccountProfile(w, r, req)
	case "tipping_setGatewayAddress":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetGatewayAddress(w, r, req)
	case "tipping_pause":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handlePause(w, r, req)
	case "tipping_unpause":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUnpause(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// mutate runs a unit of work against the journaled state. On success the
// overlay is committed; any error reverts every write the unit made.
func (s *Server) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	revision := s.st.Snapshot()
	if err := fn(); err != nil {
		s.st.RevertToSnapshot(revision)
		return err
	}
	return s.st.Commit()
}

// errorCode maps engine sentinels onto JSON-RPC error codes and HTTP statuses.
func errorCode(err error) (int, int) {
	switch {
	case errors.Is(err, tipping.ErrUnauthorized), errors.Is(err, tipping.ErrNotGateway):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, tipping.ErrSeasonNotFound), errors.Is(err, tipping.ErrLabelNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, tipping.ErrInsufficientAllowance),
		errors.Is(err, tipping.ErrLifetimeBoundExceeded),
		errors.Is(err, tipping.ErrSeasonCapExceeded),
		errors.Is(err, tipping.ErrProgramCapExceeded):
		return http.StatusConflict, codeQuotaExceeded
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, codeServerError
	default:
		return http.StatusBadRequest, codeInvalidParams
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
