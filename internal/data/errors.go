package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrContentNotFound = errors.New("content not found")
	ErrProjectNotFound = errors.New("project not found")

	ErrTxRequired = errors.New("transaction is required")
)
