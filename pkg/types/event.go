package types

// ChangeType classifies a file-system change seen by the incremental
// indexer. Renames are modeled as a Deleted for the old path followed by a
// Created for the new one.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// FileChangeEvent is an ephemeral change notification. Events are coalesced
// by (ChangeType, Path) during the debounce window, consumed once, and
// discarded.
type FileChangeEvent struct {
	Path       string
	ChangeType ChangeType
}
