package tablejoin

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a bad join request detected before any merge work.
type ValidationError struct {
	Field  string // what was rejected: "left table", "right keys", "join type", ...
	Reason string // human-readable explanation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// KeyType is a key column name with its declared element type.
type KeyType struct {
	Name  string
	DType DType
}

func (k KeyType) String() string {
	return k.Name + ":" + k.DType.String()
}

func formatKeyTypes(keys []KeyType) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// IncompatibleKeyTypesError is returned when a left key column cannot be
// compared with its right counterpart. It carries every key on both sides so
// the mismatch can be shown side by side.
type IncompatibleKeyTypesError struct {
	Left  []KeyType
	Right []KeyType
	Pair  int // index of the first offending key pair
}

func (e *IncompatibleKeyTypesError) Error() string {
	return fmt.Sprintf("incompatible key types: left: %s; right: %s",
		formatKeyTypes(e.Left), formatKeyTypes(e.Right))
}

// MergeError wraps any other failure raised while merging or assembling the
// result. The cause is kept for errors.Is/As.
type MergeError struct {
	Left  []KeyType
	Right []KeyType
	Err   error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge failed (left: %s; right: %s): %v",
		formatKeyTypes(e.Left), formatKeyTypes(e.Right), e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}
