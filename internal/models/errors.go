package models

import "github.com/pkg/errors"

var (
	// ErrDuplicateTracking: the (owner, awb) pair is already tracked.
	ErrDuplicateTracking = errors.New("awb is already tracked")
	// ErrInvalidAWB: the courier has no scan data for the awb.
	ErrInvalidAWB = errors.New("courier returned no scans for awb")
	// ErrUnknownAWB: a tracked lookup was required but the awb is not tracked.
	ErrUnknownAWB = errors.New("awb is not tracked")
	// ErrUnknownCourier: no adapter is registered for the courier kind.
	ErrUnknownCourier = errors.New("unknown courier")
	// ErrNotFound is returned by stores for missing rows.
	ErrNotFound = errors.New("not found")
)
