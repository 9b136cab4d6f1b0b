package services

import "errors"

// Sentinel errors shared across the service layer. Handlers map these onto
// the HTTP error envelope.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid payment status transition")
	ErrMessagesDisabled  = errors.New("creator does not accept messages")
	ErrNotOwner          = errors.New("resource belongs to another creator")
)
