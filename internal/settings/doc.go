// Package settings reconciles desired device settings.
//
// Settings are stored as an append-only log in which the newest row is
// authoritative. A change request is a Partial: every nil field keeps its
// prior value. The Engine merges the request over the authoritative state,
// computes the Diff of fields whose value actually changed, persists the
// merged state and, through Apply, hands the diff to a Dispatcher that turns
// it into a device command. Before anything is stored, the Diff holds exactly
// the fields the request supplied, so the device is never sent values the
// operator did not set.
//
// Concurrent reconciliations are not serialised. Two requests racing on the
// same prior state both persist, and the later commit is authoritative.
package settings
