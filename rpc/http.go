package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rkumarchou/FYNTokens/core"
	"github.com/rkumarchou/FYNTokens/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "FYN_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the wallet over JSON-RPC 2.0. The single mutex serializes
// every mutating request: the wallet core is written single-writer and the
// lock is what upholds that contract behind a network surface.
type Server struct {
	wallet *core.Wallet
	logger *slog.Logger

	mu        sync.Mutex
	authToken string
	metrics   *observability.WalletMetrics
}

// NewServer constructs the RPC server. The bearer token guarding mutating
// methods is read from the FYN_RPC_TOKEN environment variable; an empty token
// disables the check.
func NewServer(wallet *core.Wallet, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		wallet:    wallet,
		logger:    logger,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		metrics:   observability.Wallet(),
	}
}

// Start serves JSON-RPC on addr until the listener fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

// RPCRequest is the JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is the JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) == 1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid JSON-RPC request")
		return
	}

	handler, ok := s.routes()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found: "+req.Method)
		return
	}
	if handler.mutating && !s.authorized(r) {
		s.metrics.Requests.WithLabelValues(req.Method, "unauthorized").Inc()
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token")
		return
	}

	if handler.mutating {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	handler.fn(w, &req)
}

type route struct {
	mutating bool
	fn       func(http.ResponseWriter, *RPCRequest)
}

func (s *Server) routes() map[string]route {
	return map[string]route{
		"wallet_dispatch":          {true, s.handleDispatch},
		"wallet_confirm":           {true, s.handleConfirm},
		"wallet_revoke":            {true, s.handleRevoke},
		"wallet_addOwner":          {true, s.handleAddOwner},
		"wallet_removeOwner":       {true, s.handleRemoveOwner},
		"wallet_replaceOwner":      {true, s.handleReplaceOwner},
		"wallet_changeRequirement": {true, s.handleChangeRequirement},
		"wallet_setDailyLimit":     {true, s.handleSetDailyLimit},
		"wallet_resetSpentToday":   {true, s.handleResetSpentToday},
		"wallet_withdrawVested":    {true, s.handleWithdrawVested},
		"wallet_deposit":           {true, s.handleDeposit},
		"wallet_kill":              {true, s.handleKill},
		"wallet_stopToken":         {true, s.handleStopToken},
		"wallet_disableSwapLock":   {true, s.handleDisableSwapLock},
		"wallet_isOwner":           {false, s.handleIsOwner},
		"wallet_hasConfirmed":      {false, s.handleHasConfirmed},
		"wallet_info":              {false, s.handleInfo},
	}
}
