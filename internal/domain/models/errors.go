package models

import "errors"

var (
	// ErrSourceUnavailable indicates a batch or production read failed at the persistence layer.
	ErrSourceUnavailable = errors.New("inventory source unavailable")

	// ErrMalformedRecord marks a single batch or production row that lacks required fields.
	// It is recovered per record and never aborts a category.
	ErrMalformedRecord = errors.New("malformed inventory record")

	// ErrConfigurationMissing indicates a required price key has no value.
	ErrConfigurationMissing = errors.New("price configuration missing")

	ErrUnknownCategory    = errors.New("unknown category")
	ErrUnknownProductKind = errors.New("unknown product kind")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInsufficientStock  = errors.New("insufficient stock")
)
