package ckpt

import "errors"

// Load failures are fatal: no partial model is ever returned. Every error
// wraps one of these sentinels so callers can classify with errors.Is.
var (
	ErrBadMagic        = errors.New("ckpt: bad magic")
	ErrBadPrecision    = errors.New("ckpt: unsupported precision mode")
	ErrTruncated       = errors.New("ckpt: truncated file")
	ErrUnknownTensor   = errors.New("ckpt: unknown tensor")
	ErrShapeMismatch   = errors.New("ckpt: tensor shape mismatch")
	ErrSizeMismatch    = errors.New("ckpt: tensor size mismatch")
	ErrDuplicateTensor = errors.New("ckpt: tensor written twice")
	ErrMissingTensor   = errors.New("ckpt: tensor missing from part")
	ErrPartMismatch    = errors.New("ckpt: part header mismatch")
)
