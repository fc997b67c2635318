package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hauldesk/hauldesk-api/internal/entity"
)

// ValidationErrors is returned before any quoting work when the intake is
// malformed.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// UpstreamQuoteError is a candidate generator failure. It is always
// recovered by the deterministic fallback.
type UpstreamQuoteError struct {
	Variant string
	Reason  string
	Err     error
}

func (e *UpstreamQuoteError) Error() string {
	if e.Variant != "" {
		return fmt.Sprintf("upstream quote (%s): %s: %v", e.Variant, e.Reason, e.Err)
	}
	return fmt.Sprintf("upstream quote: %s: %v", e.Reason, e.Err)
}

func (e *UpstreamQuoteError) Unwrap() error { return e.Err }

// IdentityConflict means a contact or property could not be resolved even
// after re-selecting on a uniqueness conflict, or the insert failed for a
// reason other than uniqueness. It aborts the commit transaction.
type IdentityConflict struct {
	Entity string
	Key    string
	Err    error
}

func (e *IdentityConflict) Error() string {
	return fmt.Sprintf("identity conflict on %s %q: %v", e.Entity, e.Key, e.Err)
}

func (e *IdentityConflict) Unwrap() error { return e.Err }

// Retryable reports whether a fresh transaction could succeed: the conflict
// came from a lost uniqueness race rather than a failed write.
func (e *IdentityConflict) Retryable() bool {
	return errors.Is(e.Err, entity.ErrContactAlreadyExists) || errors.Is(e.Err, entity.ErrContactNotFound)
}

// CommitTransactionError is any other failure inside the lead commit.
type CommitTransactionError struct {
	Step CommitState
	Err  error
}

func (e *CommitTransactionError) Error() string {
	return fmt.Sprintf("commit lead failed at %s: %v", e.Step, e.Err)
}

func (e *CommitTransactionError) Unwrap() error { return e.Err }
