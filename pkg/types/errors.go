package types

import "errors"

// Domain errors shared across the engine.
var (
	// ErrNotIndexed is returned when directory or content stats are
	// requested for a path nothing has ever been indexed under.
	// Distinct from an indexed directory that currently has zero chunks.
	ErrNotIndexed = errors.New("not indexed")

	// ErrEmptyContent is returned when an operation requires non-empty text.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrUnknownContentType is returned for a content type outside the
	// known set where a closed set is required.
	ErrUnknownContentType = errors.New("unknown content type")
)
