package cartaporte

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityNotFound means the authoritative source has no entry for the RFC.
	ErrIdentityNotFound = errors.New("identity not found in authoritative source")
	// ErrIdentityNotValidated means the RFC is cached but has not been checked
	// against the government registry yet.
	ErrIdentityNotValidated = errors.New("identity not validated against registry")
	// ErrDocumentNotFound is returned by repositories for unknown UUIDs.
	ErrDocumentNotFound = errors.New("stamped document not found")
	// ErrStamperUnavailable means no PAC is configured for this process.
	ErrStamperUnavailable = errors.New("pac stamper not configured")
	// ErrRepositoryUnavailable means no document store is configured.
	ErrRepositoryUnavailable = errors.New("document repository not configured")
	// ErrCircuitOpen is returned without calling the PAC while its breaker is open.
	ErrCircuitOpen = errors.New("pac circuit breaker is open")
)

// PACError is a non-success answer from the PAC.
type PACError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *PACError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("pac error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("pac error %d: %s", e.StatusCode, e.Message)
}

// ValidationFailedError carries a failed pre-stamping validation result.
type ValidationFailedError struct {
	Result ValidationResult
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("document failed validation with %d error(s)", len(e.Result.Errors))
}

// IdentityMismatchError carries the critical findings of identity
// reconciliation. Stamping never proceeds past one.
type IdentityMismatchError struct {
	Records []ErrorRecord
}

func (e *IdentityMismatchError) Error() string {
	if len(e.Records) == 0 {
		return "identity reconciliation failed"
	}
	return fmt.Sprintf("identity reconciliation failed: %s", e.Records[0].Message)
}
