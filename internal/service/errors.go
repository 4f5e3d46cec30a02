package service

import "errors"

// Sentinel errors shared by the services. Handlers map them to HTTP statuses.
var (
	ErrIDRequired       = errors.New("id is required")
	ErrOwnerRequired    = errors.New("owner id is required")
	ErrTemplateRequired = errors.New("template id is required")
	ErrStateRequired    = errors.New("document state is required")
	ErrInvalidStatus    = errors.New("invalid document status")
	ErrNotFound         = errors.New("document not found")
	ErrVersionNotFound  = errors.New("version not found")
	ErrInvalidKeepCount = errors.New("keep count must be at least 1")
	ErrEmptyOrder       = errors.New("order has no items")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderAlreadyPaid = errors.New("order is already paid")
	ErrEventNotFound    = errors.New("outbox event not found")
)
