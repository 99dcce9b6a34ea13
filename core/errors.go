package core

import "errors"

var (
	ErrNilTransaction      = errors.New("core: transaction required")
	ErrInvalidChainID      = errors.New("core: chain id mismatch")
	ErrNonceMismatch       = errors.New("core: nonce mismatch")
	ErrUnsupportedTxType   = errors.New("core: unsupported transaction type")
	ErrEventLogUnavailable = errors.New("core: event log not configured")
	ErrMintNotBootstrapped = errors.New("core: payment mint not bootstrapped")
)
