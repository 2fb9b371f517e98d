// Package checkpoint persists the highest elapsed tick a node has issued
// IDs for, backed by Pebble. The in-memory generator cannot defend its
// uniqueness contract across a restart combined with a clock regression;
// the checkpoint closes that gap: on startup the server compares the
// wall clock against the persisted high water and waits out (or refuses)
// the difference.
//
// Writes never happen on the mint path; the server flushes the latest
// issued tick on a timer and once more on shutdown.
package checkpoint
