// Package repository defines data access over MySQL along with the
// sentinel errors shared across repositories. Higher layers use these
// values with errors.Is to map failures onto stable API error codes.
package repository

import "errors"

// ErrPlotNotFound is returned when no plot matches the given id and
// location. Handlers translate this into an HTTP 404 response.
var ErrPlotNotFound = errors.New("plot not found")

// ErrTransactionNotFound is returned when a ledger entry is absent,
// or when an owner filter is supplied and the entry belongs to a
// different user. The two cases are deliberately indistinguishable so
// existence is never leaked across accounts.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrUnknownLocation is returned for a location key that is not
// registered in the locations table. Handlers translate this into an
// HTTP 400 response.
var ErrUnknownLocation = errors.New("unknown location")

// ErrStatusConflict is returned when a guarded status transition
// finds the plot in a different state than the caller expected, for
// example two concurrent reservations racing for the same plot.
// Handlers translate this into an HTTP 409 response.
var ErrStatusConflict = errors.New("plot status conflict")

// ErrTransactionCompleted is returned when completing a ledger entry
// that has already been completed.
var ErrTransactionCompleted = errors.New("transaction already completed")
