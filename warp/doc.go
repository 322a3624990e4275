// Package warp implements the elastic-audio marker model: warp markers that
// pin positions in an original recording to positions on a warped musical
// timeline, derived constant-ratio regions between adjacent markers, and a
// Processor that owns the marker set and answers bidirectional position
// mapping queries.
//
// The Processor is safe for concurrent use: structural edits and mapping
// queries are serialized by a single coarse lock. Edits are infrequent and
// region rebuilds are linear in the marker count, so the lock is held only
// for microseconds.
package warp
