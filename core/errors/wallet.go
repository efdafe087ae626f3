package errors

import stderrors "errors"

// Wallet-core failure taxonomy. Validation failures surface one of these and
// leave no partial writes behind; only ErrExternalTransferFailed can occur
// after internal bookkeeping has been staged, and callers of the confirm path
// must treat it as fatal to the request.
var (
	ErrNotAuthorized          = stderrors.New("wallet: caller is not a participant")
	ErrAlreadyApplied         = stderrors.New("wallet: operation already applied")
	ErrQuorumUnsatisfiable    = stderrors.New("wallet: change would leave quorum unsatisfiable")
	ErrCapacityExhausted      = stderrors.New("wallet: participant registry full")
	ErrInsufficientVested     = stderrors.New("wallet: amount exceeds vested allowance")
	ErrArithmeticOverflow     = stderrors.New("wallet: arithmetic overflow")
	ErrUnknownFingerprint     = stderrors.New("wallet: no transaction staged for fingerprint")
	ErrExternalTransferFailed = stderrors.New("wallet: external transfer failed")
)
