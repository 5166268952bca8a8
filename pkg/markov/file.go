package markov

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// SaveFile writes the chain to path in the Save format. The file is replaced
// atomically, so readers never observe a partially written model.
func (c *Chain) SaveFile(path string) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// LoadFile reads a chain previously written with SaveFile or Save.
func LoadFile(path string, opts ...Option) (*Chain, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return Load(f, opts...)
}
