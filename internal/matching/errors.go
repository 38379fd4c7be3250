package matching

import "errors"

// ErrInvalidPrice is the only structural failure the kernel surfaces: the
// price is non-positive, or carries more than two fractional digits. The
// book is left unmodified when this is returned.
var ErrInvalidPrice = errors.New("matching: price must be positive with at most two fractional digits")
