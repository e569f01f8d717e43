package merge

import (
	"fmt"
	"sort"

	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/parallel"
)

// Partition splits data into exactly n consecutive units of ceil(len/n) bytes.
// Trailing units may be short or empty; they are still returned so indices
// stay contiguous. Each chunk is a sub-slice of data, capped so that a worker
// appending to it cannot overwrite its neighbour.
func Partition(data []byte, n int) []parallel.WorkUnit {
	if n <= 0 {
		return nil
	}
	chunkSize := (len(data) + n - 1) / n
	units := make([]parallel.WorkUnit, n)
	for i := range units {
		start := min(i*chunkSize, len(data))
		end := min(start+chunkSize, len(data))
		units[i] = parallel.WorkUnit{Chunk: data[start:end:end], Index: i}
	}
	return units
}

// Reassemble sorts results by index and concatenates their buffers. It fails
// if the indices are not exactly 0..len(results)-1 or if the total length is
// not wantLen.
func Reassemble(results []parallel.WorkResult, wantLen int) ([]byte, error) {
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	out := make([]byte, 0, wantLen)
	for i, res := range results {
		if res.Index != i {
			return nil, apperrors.MergeError{Cause: fmt.Errorf("missing or duplicate chunk at index %d (got %d)", i, res.Index)}
		}
		out = append(out, res.Buffer...)
	}
	if len(out) != wantLen {
		return nil, apperrors.MergeError{Cause: fmt.Errorf("reassembled %d bytes, expected %d", len(out), wantLen)}
	}
	return out, nil
}
