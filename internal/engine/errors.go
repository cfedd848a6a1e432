package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/typegraph/internal/ir"
)

// InvariantError reports an internal-consistency failure of the analysis
// caches. It is raised with panic, never returned: continuing after one
// would corrupt every later query.
//
// Invariant errors include:
//   - Double booking: an Unequal verdict for two nodes of the same class
//   - Conflicting merge: an Equal verdict for two classes whose
//     representatives do not compare equal
//   - SCC reattachment: a node receiving a second, different TypeSCC
type InvariantError struct {
	// Code identifies the violated invariant.
	Code InvariantCode

	// Op names the operation that detected the violation.
	Op string

	// A and B are the nodes involved. B is ir.NoNode when only one node
	// is relevant.
	A, B ir.NodeID

	// Details contains additional context.
	Details map[string]string
}

// InvariantCode categorizes invariant violations.
type InvariantCode string

const (
	// ErrCodeDoubleBooking indicates two nodes are both equal and unequal.
	ErrCodeDoubleBooking InvariantCode = "DOUBLE_BOOKING"

	// ErrCodeConflictingMerge indicates two distinct classes were claimed
	// equal but their representatives disagree.
	ErrCodeConflictingMerge InvariantCode = "CONFLICTING_MERGE"

	// ErrCodeSCCReattached indicates a node landed in two SCCs.
	ErrCodeSCCReattached InvariantCode = "SCC_REATTACHED"
)

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.B != ir.NoNode {
		return fmt.Sprintf("%s: %s (a=%s, b=%s)", e.Code, e.Op, e.A, e.B)
	}
	return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Op, e.A)
}

// IsInvariantError returns true if err is an InvariantError.
// Uses errors.As to handle wrapped errors.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// AsInvariantError converts a recovered panic value to an InvariantError.
// It returns false for any other panic value.
func AsInvariantError(recovered any) (*InvariantError, bool) {
	err, ok := recovered.(error)
	if !ok {
		return nil, false
	}
	var ie *InvariantError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

func violation(code InvariantCode, op string, a, b ir.NodeID, details map[string]string) {
	panic(&InvariantError{Code: code, Op: op, A: a, B: b, Details: details})
}
