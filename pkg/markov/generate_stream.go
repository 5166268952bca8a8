package markov

import (
	"context"
	"log/slog"
)

// GenerateStream walks the chain like GenerateFrom but delivers tokens on a
// channel as they are sampled, starting with the seed tokens. A nil seed
// starts from a uniformly chosen context. The walk runs on a private copy of
// the chain, so the chain may be trained while the stream is being read.
//
// The channel is closed once generation is complete or ctx is cancelled. The
// boolean is false, and the channel nil, when the chain is empty or the seed
// has the wrong length.
func (c *Chain) GenerateStream(ctx context.Context, seed []string, maxTokens int) (<-chan string, bool) {
	if len(c.entries) == 0 {
		return nil, false
	}
	if seed == nil {
		seed = c.entries[c.rng.IntN(len(c.entries))].context
	}
	if len(seed) != c.order {
		return nil, false
	}

	walker := c.Clone()
	window := make([]string, len(seed))
	copy(window, seed)
	maxTokens = max(maxTokens, 0)

	tokenChan := make(chan string)
	go func() {
		defer close(tokenChan)

		for _, token := range window {
			select {
			case <-ctx.Done():
				return
			case tokenChan <- token:
			}
		}

		var keyBuf []byte
		for generated := 0; generated < maxTokens; generated++ {
			keyBuf = appendContextKey(keyBuf[:0], window)
			e, ok := walker.table[string(keyBuf)]
			if !ok {
				walker.logger.DebugContext(ctx, "Stream terminated due to dead-end",
					slog.Int("generated_length", generated),
					slog.Int("max_tokens", maxTokens),
				)
				return
			}
			next := chooseNext(walker.rng, e.next, e.total)
			copy(window, window[1:])
			window[len(window)-1] = next

			select {
			case <-ctx.Done():
				return
			case tokenChan <- next:
			}
		}
	}()
	return tokenChan, true
}
