package markov

import (
	"io"
)

// Tokenizer is an interface that defines the contract for splitting input text
// into tokens. This allows the chain to be independent of the specific
// tokenization strategy.
type Tokenizer interface {
	// NewStream returns a stateful StreamTokenizer for processing an io.Reader.
	NewStream(io.Reader) StreamTokenizer
}

// StreamTokenizer is an interface for a stateful tokenizer that processes a
// stream of data, returning one token at a time.
type StreamTokenizer interface {
	// Next returns the next token from the stream. It returns io.EOF as the
	// error when the stream is fully consumed.
	Next() (string, error)
}

// sliceStream adapts an in-memory token slice to StreamTokenizer.
type sliceStream struct {
	tokens []string
}

func (s *sliceStream) Next() (string, error) {
	if len(s.tokens) == 0 {
		return "", io.EOF
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, nil
}

// SliceStream returns a StreamTokenizer that yields tokens in order.
func SliceStream(tokens []string) StreamTokenizer {
	return &sliceStream{tokens: tokens}
}
