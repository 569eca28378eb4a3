package chunked

import (
	"errors"
	"fmt"

	"xdao.co/w3slot/record"
)

// MaxChunks is the largest number of chunks one path can have; the count
// and every index fit in one byte.
const MaxChunks = record.MaxChunkCount

// DefaultChunkSize is the payload size above which content is chunked.
const DefaultChunkSize = 512

var (
	ErrTooManyChunks    = errors.New("chunked: payload needs more than 255 chunks")
	ErrInvalidChunkSize = errors.New("chunked: chunk size must be positive")
)

// NeedsChunking reports whether a payload of size bytes must be split
// rather than written to a single slot.
func NeedsChunking(size, maxChunkSize int) bool {
	return size > maxChunkSize
}

// ChunkCount returns ceil(size / maxChunkSize).
func ChunkCount(size, maxChunkSize int) (int, error) {
	if maxChunkSize <= 0 {
		return 0, ErrInvalidChunkSize
	}
	n := (size + maxChunkSize - 1) / maxChunkSize
	if n > MaxChunks {
		return 0, fmt.Errorf("%w: %d bytes at %d per chunk is %d chunks", ErrTooManyChunks, size, maxChunkSize, n)
	}
	return n, nil
}

// Split cuts payload into ceil(len/maxChunkSize) chunks. Every chunk is
// exactly maxChunkSize bytes except the last, which holds the remainder.
// Chunks alias payload.
func Split(payload []byte, maxChunkSize int) ([][]byte, error) {
	n, err := ChunkCount(len(payload), maxChunkSize)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, n)
	for start := 0; start < len(payload); start += maxChunkSize {
		end := start + maxChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		out = append(out, payload[start:end:end])
	}
	return out, nil
}
