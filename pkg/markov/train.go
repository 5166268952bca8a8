package markov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
)

// Train learns from an ordered token sequence. The first Order tokens seed
// the context window; every following token is recorded as a continuation
// of the window before it, and the window then slides forward by one.
//
// Sequences with Order or fewer tokens leave the chain unchanged. The window
// is local to the call: separate calls never produce a context that spans
// the boundary between their inputs.
func (c *Chain) Train(tokens []string) {
	if len(tokens) <= c.order {
		c.logger.Debug("Training input too short, nothing learned",
			slog.Int("tokens", len(tokens)),
			slog.Int("order", c.order),
		)
		return
	}

	var keyBuf []byte
	for i := c.order; i < len(tokens); i++ {
		keyBuf = c.observe(keyBuf, tokens[i-c.order:i], tokens[i])
	}

	c.logger.Debug("Training completed",
		slog.Int("tokens", len(tokens)),
		slog.Int("contexts", c.Len()),
	)
}

// TrainStream trains on every token produced by st as a single training
// input, exactly as Train would on the collected slice. It returns the number
// of tokens consumed. If the stream fails, the error is returned and
// everything learned before the failure is kept.
func (c *Chain) TrainStream(st StreamTokenizer) (int, error) {
	window := make([]string, 0, c.order)
	var keyBuf []byte
	var n int

	for {
		token, err := st.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return n, fmt.Errorf("tokenizer error: %w", err)
		}
		n++

		if len(window) < c.order {
			window = append(window, token)
			continue
		}
		keyBuf = c.observe(keyBuf, window, token)

		copy(window, window[1:])
		window[len(window)-1] = token
	}

	c.logger.Debug("Training completed",
		slog.Int("tokens", n),
		slog.Int("contexts", c.Len()),
	)
	return n, nil
}

// TrainReader tokenizes r with tok and trains on the result as a single
// training input. A nil tokenizer selects WhitespaceTokenizer.
func (c *Chain) TrainReader(r io.Reader, tok Tokenizer) (int, error) {
	if tok == nil {
		tok = NewWhitespaceTokenizer()
	}
	return c.TrainStream(tok.NewStream(r))
}

// observe records next as a continuation of context. keyBuf is scratch space
// for the context key and is returned for reuse.
func (c *Chain) observe(keyBuf []byte, context []string, next string) []byte {
	keyBuf = appendContextKey(keyBuf[:0], context)
	if e, ok := c.table[string(keyBuf)]; ok {
		e.add(next)
		return keyBuf
	}
	c.insert(string(keyBuf), &entry{
		context: slices.Clone(context),
		next:    []Continuation{{Token: next, Count: 1}},
		total:   1,
	})
	return keyBuf
}
