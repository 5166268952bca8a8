package markov

import (
	"bufio"
	"io"
	"strings"
)

// maxTokenSize bounds a single token read by WhitespaceTokenizer streams.
const maxTokenSize = 1 << 20

// WhitespaceTokenizer is the default implementation of the Tokenizer
// interface. It splits text on runs of ASCII whitespace (space, tab,
// newline, vertical tab, form feed and carriage return). Every other byte,
// including non-ASCII spacing characters, belongs to a token.
type WhitespaceTokenizer struct{}

// NewWhitespaceTokenizer returns the default tokenizer.
func NewWhitespaceTokenizer() *WhitespaceTokenizer {
	return &WhitespaceTokenizer{}
}

// NewStream Returns the stream processor.
func (WhitespaceTokenizer) NewStream(r io.Reader) StreamTokenizer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTokenSize)
	scanner.Split(scanASCIIWords)
	return &WhitespaceStreamTokenizer{scanner: scanner}
}

// WhitespaceStreamTokenizer is the StreamTokenizer returned by
// WhitespaceTokenizer. It uses a bufio.Scanner with an ASCII-whitespace
// split function.
type WhitespaceStreamTokenizer struct {
	scanner *bufio.Scanner
}

// Next returns the next token from the stream. When the stream is exhausted,
// it returns io.EOF. Any other error indicates a problem reading from the
// underlying stream.
func (s *WhitespaceStreamTokenizer) Next() (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

// Fields splits s on runs of ASCII whitespace.
func Fields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r < 0x80 && isASCIISpace(byte(r))
	})
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// scanASCIIWords is a bufio.SplitFunc like bufio.ScanWords that only treats
// ASCII whitespace as a separator.
func scanASCIIWords(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && isASCIISpace(data[start]) {
		start++
	}
	for i := start; i < len(data); i++ {
		if isASCIISpace(data[i]) {
			return i + 1, data[start:i], nil
		}
	}
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	// Request more data, skipping the leading spaces already seen.
	return start, nil, nil
}
