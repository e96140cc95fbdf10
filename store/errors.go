package store

import "errors"

var (
	ErrNotFound    = errors.New("store: snapshot not found")
	ErrStoreClosed = errors.New("store: already closed")
)
