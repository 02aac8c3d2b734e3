package steering

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid steering parameter")
	ErrUnknownBehavior  = errors.New("unknown steering behavior")
)
