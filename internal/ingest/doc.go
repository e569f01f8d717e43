// Package ingest reads carrier and cargo files into memory as payload records.
//
// Two strategies are provided:
//
//   - [ChunkReader] reads consecutive slices of a fixed size and reports
//     progress once per slice as (chunksRead/totalChunks) * target.
//   - [WholeFileReader] reads the file in one pass and reports progress as
//     bytes arrive, target * (loaded/total).
//
// Both report onto a caller-supplied [progress.Sink] with a caller-assigned
// target weight, so concurrent reads can share a single progress scale.
package ingest
