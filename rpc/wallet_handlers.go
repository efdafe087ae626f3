package rpc

import (
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/holiman/uint256"

	"github.com/rkumarchou/FYNTokens/core"
	walleterrors "github.com/rkumarchou/FYNTokens/core/errors"
	"github.com/rkumarchou/FYNTokens/core/types"
	"github.com/rkumarchou/FYNTokens/native/dispatch"
)

func (s *Server) decodeParams(w http.ResponseWriter, req *RPCRequest, target interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single params object")
		return false
	}
	if err := json.Unmarshal(req.Params[0], target); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeWalletError(w http.ResponseWriter, req *RPCRequest, err error) {
	s.metrics.Requests.WithLabelValues(req.Method, "error").Inc()
	status := http.StatusBadRequest
	code := codeServerError
	switch {
	case stderrors.Is(err, walleterrors.ErrNotAuthorized):
		status = http.StatusForbidden
		code = codeUnauthorized
	case stderrors.Is(err, walleterrors.ErrExternalTransferFailed):
		status = http.StatusBadGateway
	case stderrors.Is(err, core.ErrWalletDestroyed):
		status = http.StatusGone
	}
	writeError(w, status, req.ID, code, err.Error())
}

func (s *Server) writeWalletResult(w http.ResponseWriter, req *RPCRequest, result interface{}) {
	s.metrics.Requests.WithLabelValues(req.Method, "ok").Inc()
	writeResult(w, req.ID, result)
}

func parseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return uint256.NewInt(0), nil
	}
	return uint256.FromDecimal(trimmed)
}

func govStatusString(status core.GovernanceStatus) string {
	if status == core.GovernanceApplied {
		return "applied"
	}
	return "pending"
}

func dispatchStatusString(status dispatch.Status) string {
	switch status {
	case dispatch.StatusExecuted:
		return "executed"
	case dispatch.StatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

type dispatchParams struct {
	Caller  string `json:"caller"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
	Payload string `json:"payload"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, req *RPCRequest) {
	var params dispatchParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	to, err := types.ParseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount: "+err.Error())
		return
	}
	payload, err := hex.DecodeString(strings.TrimPrefix(params.Payload, "0x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payload hex")
		return
	}
	fp, status, err := s.wallet.Dispatch(to, amount, payload, caller)
	if err != nil {
		s.writeWalletError(w, req, err)
		return
	}
	s.metrics.Dispatches.WithLabelValues(dispatchStatusString(status)).Inc()
	s.writeWalletResult(w, req, map[string]string{
		"fingerprint": fp.String(),
		"status":      dispatchStatusString(status),
	})
}

type confirmParams struct {
	Caller      string `json:"caller"`
	Fingerprint string `json:"fingerprint"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, req *RPCRequest) {
	var params confirmParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	fp, err := types.ParseFingerprint(params.Fingerprint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	status, err := s.wallet.Confirm(fp, caller)
	if err != nil {
		s.writeWalletError(w, req, err)
		return
	}
	s.metrics.Confirmations.WithLabelValues("confirm").Inc()
	s.writeWalletResult(w, req, map[string]string{"status": dispatchStatusString(status)})
}

func (s *Server) handleRevoke(w http.ResponseWriter, req *RPCRequest) {
	var params confirmParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	fp, err := types.ParseFingerprint(params.Fingerprint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	revoked, err := s.wallet.Revoke(fp, caller)
	if err != nil {
		s.writeWalletError(w, req, err)
		return
	}
	s.metrics.Confirmations.WithLabelValues("revoke").Inc()
	s.writeWalletResult(w, req, map[string]bool{"revoked": revoked})
}

type ownerParams struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
}

// invalidatingMethods are the governance actions whose application remaps the
// registry and therefore sweeps all pending approvals.
var invalidatingMethods = map[string]bool{
	"wallet_addOwner":          true,
	"wallet_removeOwner":       true,
	"wallet_replaceOwner":      true,
	"wallet_changeRequirement": true,
}

func (s *Server) governanceOutcome(w http.ResponseWriter, req *RPCRequest, status core.GovernanceStatus, err error) {
	if err != nil {
		s.writeWalletError(w, req, err)
		return
	}
	if status == core.GovernanceApplied && invalidatingMethods[req.Method] {
		s.metrics.Invalidations.Inc()
	}
	s.writeWalletResult(w, req, map[string]string{"status": govStatusString(status)})
}

func (s *Server) handleAddOwner(w http.ResponseWriter, req *RPCRequest) {
	var params ownerParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	owner, err := types.ParseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	status, err := s.wallet.AddOwner(caller, owner)
	s.governanceOutcome(w, req, status, err)
}

func (s *Server) handleRemoveOwner(w http.ResponseWriter, req *RPCRequest) {
	var params ownerParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	owner, err := types.ParseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	status, err := s.wallet.RemoveOwner(caller, owner)
	s.governanceOutcome(w, req, status, err)
}

type replaceOwnerParams struct {
	Caller string `json:"caller"`
	From   string `json:"from"`
	To     string `json:"to"`
}

func (s *Server) handleReplaceOwner(w http.ResponseWriter, req *RPCRequest) {
	var params replaceOwnerParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	from, err := types.ParseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	to, err := types.ParseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	status, err := s.wallet.ReplaceOwner(caller, from, to)
	s.governanceOutcome(w, req, status, err)
}

type requirementParams struct {
	Caller   string `json:"caller"`
	Required int    `json:"required"`
}

func (s *Server) handleChangeRequirement(w http.ResponseWriter, req *RPCRequest) {
	var params requirementParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	status, err := s.wallet.ChangeRequirement(caller, params.Required)
	s.governanceOutcome(w, req, status, err)
}

type limitParams struct {
	Caller string `json:"caller"`
	Limit  string `json:"limit"`
}

func (s *Server) handleSetDailyLimit(w http.ResponseWriter, req *RPCRequest) {
	var params limitParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	limit, err := parseAmount(params.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid limit: "+err.Error())
		return
	}
	status, err := s.wallet.SetDailyLimit(caller, limit)
	s.governanceOutcome(w, req, status, err)
}

type callerParams struct {
	Caller string `json:"caller"`
}

func (s *Server) handleResetSpentToday(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	status, err := s.wallet.ResetSpentToday(caller)
	s.governanceOutcome(w, req, status, err)
}

type withdrawParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleWithdrawVested(w http.ResponseWriter, req *RPCRequest) {
	var params withdrawParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	to, err := types.ParseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount: "+err.Error())
		return
	}
	if err := s.wallet.WithdrawVested(caller, to, amount); err != nil {
		s.writeWalletError(w, req, err)
		return
	}
	s.writeWalletResult(w, req, map[string]string{"withdrawnTotal": s.wallet.WithdrawnTotal().Dec()})
}

type depositParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params depositParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	from, err := types.ParseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount: "+err.Error())
		return
	}
	if err := s.wallet.Deposit(from, amount); err != nil {
		s.writeWalletError(w, req, err)
		return
	}
	s.writeWalletResult(w, req, map[string]bool{"accepted": true})
}

type killParams struct {
	Caller      string `json:"caller"`
	Beneficiary string `json:"beneficiary"`
}

func (s *Server) handleKill(w http.ResponseWriter, req *RPCRequest) {
	var params killParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	beneficiary, err := types.ParseAddress(params.Beneficiary)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	status, err := s.wallet.Kill(caller, beneficiary)
	s.governanceOutcome(w, req, status, err)
}

func (s *Server) handleStopToken(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	status, err := s.wallet.StopToken(caller)
	s.governanceOutcome(w, req, status, err)
}

func (s *Server) handleDisableSwapLock(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	status, err := s.wallet.DisableSwapLock(caller)
	s.governanceOutcome(w, req, status, err)
}

type addressParams struct {
	Address string `json:"address"`
}

func (s *Server) handleIsOwner(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	s.writeWalletResult(w, req, map[string]bool{"isOwner": s.wallet.IsOwner(addr)})
}

type hasConfirmedParams struct {
	Fingerprint string `json:"fingerprint"`
	Address     string `json:"address"`
}

func (s *Server) handleHasConfirmed(w http.ResponseWriter, req *RPCRequest) {
	var params hasConfirmedParams
	if !s.decodeParams(w, req, &params) {
		return
	}
	fp, err := types.ParseFingerprint(params.Fingerprint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	s.writeWalletResult(w, req, map[string]bool{"hasConfirmed": s.wallet.HasConfirmed(fp, addr)})
}

func (s *Server) handleInfo(w http.ResponseWriter, req *RPCRequest) {
	owners := s.wallet.Owners()
	renderedOwners := make([]string, 0, len(owners))
	for _, owner := range owners {
		renderedOwners = append(renderedOwners, owner.String())
	}
	pending := s.wallet.PendingOperations()
	renderedPending := make([]string, 0, len(pending))
	for _, fp := range pending {
		renderedPending = append(renderedPending, fp.String())
	}
	s.writeWalletResult(w, req, map[string]interface{}{
		"owners":          renderedOwners,
		"required":        s.wallet.Required(),
		"numOwners":       s.wallet.NumOwners(),
		"dailyLimit":      s.wallet.DailyLimit().Dec(),
		"spentToday":      s.wallet.SpentToday().Dec(),
		"withdrawnTotal":  s.wallet.WithdrawnTotal().Dec(),
		"pending":         renderedPending,
		"destroyed":       s.wallet.Destroyed(),
		"refundsDisabled": s.wallet.RefundsDisabled(),
	})
}
