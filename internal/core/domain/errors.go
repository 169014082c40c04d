package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrExtraction marks a malformed or unreadable document. Fatal for that
	// document only; the rest of the batch continues.
	ErrExtraction = errors.New("extraction failed")

	// ErrClassificationAmbiguous propagates the unknown-process state.
	ErrClassificationAmbiguous = errors.New("classification ambiguous")

	// ErrRetrievalUnavailable means the reference index is unreachable.
	// Fatal for the whole run.
	ErrRetrievalUnavailable = errors.New("reference index unavailable")

	// ErrJudgment marks a per-unit judgment failure, recovered via the
	// retry-then-downgrade policy.
	ErrJudgment = errors.New("judgment failed")

	// ErrSchemaViolation means an issue or report failed its invariant.
	// Such data must never reach the caller.
	ErrSchemaViolation = errors.New("schema violation")

	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
