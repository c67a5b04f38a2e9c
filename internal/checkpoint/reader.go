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

	"gonum.org/v1/gonum/mat"
)

// ReadFile reads a checkpoint written by WriteFile.
func ReadFile(path string) (map[string]*mat.Dense, map[string]string, error) {
	//nolint:gosec // G304: checkpoint path is supplied by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Read(bufio.NewReader(f))
}

// Read decodes a checkpoint from r. Only F64 tensors of rank 1 or 2 are
// accepted; rank-1 tensors load as a single row.
func Read(r io.Reader) (map[string]*mat.Dense, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	entries, metadata, err := parseHeader(headerJSON)
	if err != nil {
		return nil, nil, err
	}
	if err := validateOffsets(entries, int64(len(data))); err != nil {
		return nil, nil, err
	}
	if want, ok := metadata[checksumKey]; ok {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != want {
			return nil, nil, ErrChecksumMismatch
		}
	}

	out := make(map[string]*mat.Dense, len(entries))
	for _, e := range entries {
		vals := make([]float64, e.rows*e.cols)
		raw := data[e.offset : e.offset+e.size]
		for i := range vals {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		out[e.name] = mat.NewDense(e.rows, e.cols, vals)
	}
	return out, metadata, nil
}

func parseHeader(headerJSON []byte) ([]entry, map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	metadata := map[string]string{}
	entries := make([]entry, 0, len(raw))
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &metadata); err != nil {
				return nil, nil, fmt.Errorf("%w: metadata: %w", ErrInvalidHeader, err)
			}
			continue
		}
		if err := validateName(name); err != nil {
			return nil, nil, err
		}

		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, nil, fmt.Errorf("%w: tensor %q: %w", ErrInvalidHeader, name, err)
		}
		if th.DType != dtypeF64 {
			return nil, nil, fmt.Errorf("%w: tensor %q has dtype %s", ErrUnsupportedDType, name, th.DType)
		}

		e := entry{name: name, offset: th.DataOffsets[0], size: th.DataOffsets[1] - th.DataOffsets[0]}
		switch len(th.Shape) {
		case 1:
			e.rows, e.cols = 1, int(th.Shape[0])
		case 2:
			e.rows, e.cols = int(th.Shape[0]), int(th.Shape[1])
		default:
			return nil, nil, fmt.Errorf("%w: tensor %q has rank %d", ErrInvalidHeader, name, len(th.Shape))
		}
		if e.rows <= 0 || e.cols <= 0 || int64(e.rows)*int64(e.cols)*8 != e.size {
			return nil, nil, &ValidationError{Type: "size_mismatch", Tensor: name,
				Details: fmt.Sprintf("shape %v needs %d bytes, offsets span %d", th.Shape, 8*e.rows*e.cols, e.size)}
		}
		entries = append(entries, e)
	}
	return entries, metadata, nil
}
