package checkpoint

import (
	"fmt"
	"sort"
	"strings"
)

// Limits applied when reading.
const (
	MaxHeaderSize    = 16 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// entry locates one tensor in the data section.
type entry struct {
	name   string
	rows   int
	cols   int
	offset int64
	size   int64
}

// validateName rejects names that could be mistaken for paths.
func validateName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{Type: "name_too_long", Tensor: name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen)}
	case strings.Contains(name, ".."):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\\x00"):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains a path separator or null byte"}
	}
	return nil
}

// validateOffsets checks that entries lie inside the data section and do
// not overlap.
func validateOffsets(entries []entry, dataSize int64) error {
	if len(entries) > MaxTensorCount {
		return &ValidationError{Type: "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(entries), MaxTensorCount)}
	}

	sorted := append([]entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].offset < sorted[j].offset })

	for i, e := range sorted {
		if e.offset < 0 || e.size < 0 {
			return &ValidationError{Type: "negative_offset", Tensor: e.name,
				Details: fmt.Sprintf("offset=%d, size=%d", e.offset, e.size)}
		}
		if e.offset+e.size > dataSize {
			return &ValidationError{Type: "out_of_bounds", Tensor: e.name,
				Details: fmt.Sprintf("offset %d + size %d > data size %d", e.offset, e.size, dataSize)}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if e.offset+e.size > next.offset {
				return &ValidationError{Type: "offset_overlap", Tensor: e.name, Tensor2: next.name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						e.offset, e.offset+e.size, next.offset, next.offset+next.size)}
			}
		}
	}
	return nil
}
