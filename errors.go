package main

import "github.com/pkg/errors"

// Failure kinds. Every error returned by a derivation or writer wraps one of
// these, test with errors.Is.
var (
	ErrSchedulerUnavailable = errors.New("scheduler unavailable")
	ErrAddressResolution    = errors.New("cannot resolve address")
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrUnparsableValue      = errors.New("unparsable value")
	ErrConfigFieldMissing   = errors.New("config field missing")
)
