package checkpoint

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	dtypeF64    = "F64"
	metadataKey = "__metadata__"
	checksumKey = "sha256"
)

// tensorHeader is one tensor's entry in the JSON header.
type tensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteFile writes weights to path, replacing any existing file.
func WriteFile(path string, weights map[string]*mat.Dense, metadata map[string]string) error {
	//nolint:gosec // G304: checkpoint path is supplied by the user
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, weights, metadata); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush checkpoint: %w", err)
	}
	return f.Close()
}

// Write encodes weights to w. Tensors are laid out in name order.
func Write(w io.Writer, weights map[string]*mat.Dense, metadata map[string]string) error {
	names := make([]string, 0, len(weights))
	for name := range weights {
		if err := validateName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var data []byte
	header := make(map[string]any, len(names)+1)
	for _, name := range names {
		d := weights[name]
		rows, cols := d.Dims()
		begin := int64(len(data))
		data = appendFloats(data, d)
		header[name] = tensorHeader{
			DType:       dtypeF64,
			Shape:       []int64{int64(rows), int64(cols)},
			DataOffsets: [2]int64{begin, int64(len(data))},
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	sum := sha256.Sum256(data)
	meta[checksumKey] = hex.EncodeToString(sum[:])
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

func appendFloats(buf []byte, d *mat.Dense) []byte {
	rows, cols := d.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(d.At(i, j)))
		}
	}
	return buf
}
