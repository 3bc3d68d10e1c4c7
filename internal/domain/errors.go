package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrSaltReplayed = errors.New("salt already used")
)
