/*
errors.go - Centralized error types for the ledger engine

ERROR CATEGORIES:
  1. Validation errors - rejected before any store write
  2. Party errors      - references that cannot hold postings
  3. Lookup errors     - missing orders, postings, parties
  4. Store errors      - wrapped with context, always rolled back

USAGE:
  if errors.Is(err, ledger.ErrInvalidOrder) {
      var verr *ledger.ValidationError
      errors.As(err, &verr) // field-level details
  }
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidOrder is returned when an order fails validation.
	// Nothing has been written when this is returned.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidEntry is returned when a manual posting fails validation.
	ErrInvalidEntry = errors.New("invalid ledger entry")

	// ErrInvalidParty is returned when a party fails validation.
	ErrInvalidParty = errors.New("invalid party")

	// ErrOrderNotFound is returned when the order does not exist for the user.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPostingNotFound is returned when the posting does not exist for the user.
	ErrPostingNotFound = errors.New("posting not found")

	// ErrPartyNotFound is returned when a referenced party does not exist.
	ErrPartyNotFound = errors.New("party not found")

	// ErrProductPosting is returned when a posting would land on a Product party.
	ErrProductPosting = errors.New("products cannot hold postings")

	// ErrPartyTypeMismatch is returned when a reference points at the wrong
	// kind of party (e.g. an order's product is a customer).
	ErrPartyTypeMismatch = errors.New("party type mismatch")

	// ErrDerivedPosting is returned when deleting a posting that belongs to
	// an order. Those change only through the order.
	ErrDerivedPosting = errors.New("posting is derived from an order")

	// ErrPartyInUse is returned when deleting a party still referenced by
	// orders or postings.
	ErrPartyInUse = errors.New("party is referenced by orders or postings")

	// ErrUserRequired is returned when an operation is called without an owner.
	ErrUserRequired = errors.New("user id is required")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FieldError is one user-correctable problem.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found on an input. It unwraps to the
// sentinel of the kind of input that was rejected.
type ValidationError struct {
	Kind   error
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return fmt.Sprintf("%v: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// PartyError describes a bad party reference on an order or entry.
type PartyError struct {
	Role    string // "customer", "vendor", "product", "pickup person", "party"
	PartyID PartyID
	Err     error
}

func (e *PartyError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Role, e.PartyID, e.Err)
}

func (e *PartyError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var perr *PartyError
	if errors.As(err, &perr) {
		return true
	}
	return errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrInvalidEntry) ||
		errors.Is(err, ErrInvalidParty) ||
		errors.Is(err, ErrProductPosting) ||
		errors.Is(err, ErrPartyTypeMismatch) ||
		errors.Is(err, ErrUserRequired)
}

// IsNotFound returns true if the error indicates a missing resource.
// A dangling party reference inside an order is a client error, not a 404.
func IsNotFound(err error) bool {
	var perr *PartyError
	if errors.As(err, &perr) {
		return false
	}
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrPostingNotFound) ||
		errors.Is(err, ErrPartyNotFound)
}

// IsConflict returns true if the request is valid but the current state forbids it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDerivedPosting) || errors.Is(err, ErrPartyInUse)
}
