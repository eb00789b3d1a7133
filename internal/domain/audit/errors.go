package audit

import "errors"

// ErrInvalidInput indicates invalid input for audit queries.
var ErrInvalidInput = errors.New("invalid audit query")
