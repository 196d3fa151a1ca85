/*
errors.go - Centralized error types for the sales domain

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Store implementations classify driver-level failures into these so the
  ingestion engine can branch with errors.Is().

ERROR CATEGORIES:
  1. Store errors - Constraint violations and persistence failures
  2. Ingestion errors - Run-level conditions surfaced to callers
*/
package sales

import "errors"

var (
	// ErrDuplicateKey is returned when an insert violates a natural-key or
	// unique-name constraint (Product/Customer/Order code, Category name).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrRefreshLogNotFound is returned when updating a run log that does
	// not exist.
	ErrRefreshLogNotFound = errors.New("refresh log not found")

	// ErrNoFilePath is returned when an ingest job carries no file path.
	ErrNoFilePath = errors.New("no file path provided")
)
