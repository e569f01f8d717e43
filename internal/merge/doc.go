// Package merge concatenates a carrier and a cargo payload, either directly or
// by partitioning the larger payload across a worker pool and reassembling
// the chunks by index.
//
// The parallel path always produces the same bytes as [Direct]: workers only
// pass their chunk through, and the smaller payload is concatenated exactly
// once, after reassembly, outside the pool.
package merge
