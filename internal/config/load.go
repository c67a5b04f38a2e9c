package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/types/known/structpb"
)

// Load decodes a JSON Definition from r and validates it.
// Unknown fields are rejected so that misspelled parameters do not go unnoticed.
func Load(r io.Reader) ([]LayerDecl, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to decode layer definition: %w", err)
	}
	if err := Validate(def.Layers); err != nil {
		return nil, err
	}
	return def.Layers, nil
}

// LoadFile reads a JSON Definition from path.
func LoadFile(path string) ([]LayerDecl, error) {
	//nolint:gosec // G304: definition path is supplied by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layer definition: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	return Load(f)
}

// FromStruct decodes a Definition held in a protobuf Struct, the form in which
// host-language dictionaries cross a protobuf boundary. The struct must carry
// a "layers" list whose entries use the same keys as the JSON form.
func FromStruct(s *structpb.Struct) ([]LayerDecl, error) {
	if s == nil {
		return nil, badDecl("nil definition")
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to encode layer definition: %w", err)
	}
	return Load(bytes.NewReader(raw))
}

// Marshal encodes decls as an indented JSON Definition.
func Marshal(decls []LayerDecl) ([]byte, error) {
	return json.MarshalIndent(Definition{Layers: decls}, "", "  ")
}
