package thumb

import "github.com/pkg/errors"

var (
	ErrAlreadyLiked = errors.New("already liked")
	ErrNotLiked     = errors.New("not liked")
)

// Result is the outcome of a like or unlike. A rejected request is not an error:
// OK is false and Reason says why.
type Result struct {
	OK     bool
	Reason string
}

func rejected(err error) Result {
	return Result{Reason: err.Error()}
}

// Err maps a rejected Result back to its sentinel error.
func (r Result) Err() error {
	switch {
	case r.OK:
		return nil
	case r.Reason == ErrAlreadyLiked.Error():
		return ErrAlreadyLiked
	case r.Reason == ErrNotLiked.Error():
		return ErrNotLiked
	default:
		return errors.New(r.Reason)
	}
}
