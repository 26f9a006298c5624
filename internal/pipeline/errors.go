package pipeline

import "errors"

// Kind is the error taxonomy used to decide retry/skip/halt behavior
// for a stage's operation (spec §7). It is a classification, not a
// concrete error type hierarchy — stage code wraps whatever underlying
// error it hit with the Kind that governs how the ledger reacts.
type Kind int

const (
	// KindTransientIO covers file temporarily unreadable, disk full on
	// artifact write, external endpoint timeout. Retried with capped
	// exponential backoff.
	KindTransientIO Kind = iota
	// KindPermanentDecode covers corrupt or unsupported image data.
	// Marked skipped; the file still fans out, and each dependent runs its
	// own operation on it.
	KindPermanentDecode
	// KindMissingPrecondition covers e.g. geocoding asked to run with no GPS.
	// Marked skipped, silently.
	KindMissingPrecondition
	// KindExternalDisabled covers a configured-empty or repeatedly
	// unreachable external endpoint. Marked skipped; stage enters cooldown.
	KindExternalDisabled
	// KindCancelled covers a user-initiated stop. Row demoted to pending,
	// no user-visible error.
	KindCancelled
	// KindFatal covers catalog unavailable, photos root missing. The
	// Supervisor marks the row failed as for any other error; it does not
	// halt the pipeline.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransientIO:
		return "transient_io"
	case KindPermanentDecode:
		return "permanent_decode"
	case KindMissingPrecondition:
		return "missing_precondition"
	case KindExternalDisabled:
		return "external_disabled"
	case KindCancelled:
		return "cancelled"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// StageError wraps an underlying error with the Kind that decides how
// the supervisor's retry loop reacts to it.
type StageError struct {
	Kind Kind
	Err  error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with kind.
func NewStageError(kind Kind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) a *StageError,
// defaulting to KindTransientIO for unclassified errors so unexpected
// failures still get retried rather than silently swallowed.
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransientIO
}

// ErrScanAlreadyActive is returned by TriggerScan when a ScanRun is in flight.
var ErrScanAlreadyActive = errors.New("pipeline: scan already active")

// ErrNoActiveScan is returned by StopScan when no ScanRun is running.
var ErrNoActiveScan = errors.New("pipeline: no active scan")
