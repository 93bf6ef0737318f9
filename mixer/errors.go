package mixer

import "errors"

// Admission failures. All of them are recoverable: the caller may retry
// with corrected input.
var (
	ErrInsufficientCredit = errors.New("depositor holds less than one share of credit")
	ErrOpenCommitment     = errors.New("depositor already has an open commitment")
	ErrQueueFull          = errors.New("withdrawal queue at capacity")
	ErrBadBatchSize       = errors.New("reveal batch size does not match the anonymity set")
	ErrBoundaryPending    = errors.New("admitted batch boundary awaits processing")
)

// Verification failures abort the whole reveal batch atomically.
var (
	ErrBadSignature    = errors.New("signature does not recover a signer")
	ErrSignerMismatch  = errors.New("recovered signer has no matching commitment")
	ErrReplayedSig     = errors.New("signature digest already consumed")
	ErrDuplicatePayout = errors.New("commitment already has a live or processed payout")
)

// Batch processing failures.
var (
	ErrBatchNotReady       = errors.New("admitted commitments do not fill the anonymity set")
	ErrNotCommitter        = errors.New("caller is not a committer of the current batch boundary")
	ErrReimbursementFailed = errors.New("batch caller reimbursement failed")
)

// ErrReentrantCall is returned when an engine call is made while another
// call against the same state is still running.
var ErrReentrantCall = errors.New("re-entrant engine call rejected")
