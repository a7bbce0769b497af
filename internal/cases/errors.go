package cases

import "errors"

var (
	ErrStaleTransition = errors.New("transition not allowed from current stage")
	ErrEncryption      = errors.New("verdict encryption failed")
)
