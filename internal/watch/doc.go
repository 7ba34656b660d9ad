// Package watch keeps the index current as files change on disk.
//
// A recursive fsnotify watcher feeds raw create/write/remove/rename events
// into a pending set keyed by (change type, path), so a burst of duplicate
// events for the same file collapses to one entry. A single shared timer is
// rebound on every event and fires only after a quiet period with no new
// activity, at which point the whole pending set is flushed: deletes first,
// then single-file re-indexes. Renames are treated as a delete of the old
// path; the new path arrives as its own create event.
//
// Transiently unreadable files (editors lock files mid-save) get one re-read
// attempt after a short delay before the change is dropped with a warning.
package watch
