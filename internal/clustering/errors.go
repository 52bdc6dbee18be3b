package clustering

import "errors"

// Sentinel errors returned by the engine. Callers should compare with
// errors.Is: failures of these kinds return one of them, or wrap it with
// fmt.Errorf("...: %w", ...) to attach the offending detail. Cancellation
// surfaces the context's own error, and errors from a Source or
// StreamingSource are wrapped as they are, without a sentinel.
var (
	// ErrEmptyInput means there were no instances, or every instance was
	// missing at least one K-Means feature.
	ErrEmptyInput = errors.New("clustering: empty input")

	// ErrDegenerateInit means the chosen initialiser could not place K
	// centroids: not enough complete rows, or a supervised-only strategy
	// was requested without a target.
	ErrDegenerateInit = errors.New("clustering: degenerate initialisation")

	// ErrInvalidParameters means a Parameters check-rule failed.
	ErrInvalidParameters = errors.New("clustering: invalid parameters")

	// ErrInsufficientMemory means the memory oracle reported below-minimum
	// headroom mid-pass.
	ErrInsufficientMemory = errors.New("clustering: insufficient memory")
)
