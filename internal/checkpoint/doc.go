// Package checkpoint stores named weight matrices in the SafeTensors layout.
//
// File layout:
//
//	[8 bytes: header size N, uint64 little-endian]
//	[N bytes: JSON header]
//	[data section: float64 little-endian, row-major, tensors in name order]
//
// The header maps every tensor name to {"dtype": "F64", "shape": [rows, cols],
// "data_offsets": [begin, end]} relative to the data section. The optional
// "__metadata__" entry carries string pairs; the writer records the SHA-256
// of the data section under "sha256" and the reader verifies it when present.
package checkpoint
