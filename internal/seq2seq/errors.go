package seq2seq

import "errors"

var (
	ErrInvalidConfig   = errors.New("invalid model config")
	ErrShapeMismatch   = errors.New("weight shape mismatch")
	ErrTokenOutOfRange = errors.New("token index out of range")
	ErrEmptyInput      = errors.New("empty input sequence")
	ErrInputTooLong    = errors.New("input sequence longer than max length")
	ErrStateSize       = errors.New("hidden state has wrong size")
)
