package domain

import "errors"

// Normalization and index errors. All are scoped to a single report: the
// caller logs, drops the report, and continues.
var (
	// ErrMalformedReport indicates required fields are missing or non-numeric.
	ErrMalformedReport = errors.New("malformed report")

	// ErrUnknownSourceFormat indicates the report matches no recognized feed shape.
	ErrUnknownSourceFormat = errors.New("unknown source format")

	// ErrOutOfBoundsCoordinate indicates a latitude outside [-90, 90] or a
	// longitude outside [-180, 180].
	ErrOutOfBoundsCoordinate = errors.New("coordinate out of bounds")

	// ErrInvalidGeometry is returned by the spatial index when an upsert
	// carries invalid coordinates.
	ErrInvalidGeometry = errors.New("invalid geometry")
)
