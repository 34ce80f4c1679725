package layout

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes l as msgpack.
func Marshal(l *Layout) ([]byte, error) {
	data, err := msgpack.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal layout: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates a msgpack layout.
func Unmarshal(data []byte) (*Layout, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes l to w.
func Encode(w io.Writer, l *Layout) error {
	if err := msgpack.NewEncoder(w).Encode(l); err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	return nil
}

// Decode reads a layout from r and validates it.
func Decode(r io.Reader) (*Layout, error) {
	var l Layout
	if err := msgpack.NewDecoder(r).Decode(&l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// WriteFile stores l at path.
func WriteFile(path string, l *Layout) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create layout file: %w", err)
	}
	if err := Encode(f, l); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads the layout stored at path.
func ReadFile(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
