package entity

import "errors"

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownScope      = errors.New("unknown scope")
)
