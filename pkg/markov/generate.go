package markov

import (
	"log/slog"
	"math/rand/v2"
	"strings"
)

// maxPrealloc caps the capacity reserved up front for generated output so
// that a very large maxTokens does not allocate before any token is known.
const maxPrealloc = 1024

// Generate produces text from the chain. It picks a seed context uniformly
// at random among all stored contexts, then appends up to maxTokens sampled
// tokens, stopping early if the last Order tokens are not a known context.
// The tokens are joined with single spaces.
//
// The boolean is false only when the chain is empty. A maxTokens of zero (or
// less) returns the seed phrase alone.
func (c *Chain) Generate(maxTokens int) (string, bool) {
	words, ok := c.GenerateTokens(maxTokens)
	if !ok {
		return "", false
	}
	return strings.Join(words, " "), true
}

// GenerateTokens is like Generate but returns the generated tokens.
func (c *Chain) GenerateTokens(maxTokens int) ([]string, bool) {
	if len(c.entries) == 0 {
		return nil, false
	}
	seed := c.entries[c.rng.IntN(len(c.entries))]
	return c.extend(seed.context, maxTokens), true
}

// GenerateFrom continues generation from a caller-supplied seed context,
// which must hold exactly Order tokens. The boolean is false if the chain is
// empty or the seed has the wrong length. The seed need not be a known
// context; an unknown seed is returned unchanged.
func (c *Chain) GenerateFrom(seed []string, maxTokens int) ([]string, bool) {
	if len(c.entries) == 0 || len(seed) != c.order {
		return nil, false
	}
	return c.extend(seed, maxTokens), true
}

// extend copies seed and appends up to maxTokens sampled tokens to it.
func (c *Chain) extend(seed []string, maxTokens int) []string {
	maxTokens = max(maxTokens, 0)
	words := make([]string, len(seed), len(seed)+min(maxTokens, maxPrealloc))
	copy(words, seed)

	var keyBuf []byte
	for range maxTokens {
		keyBuf = appendContextKey(keyBuf[:0], words[len(words)-c.order:])
		e, ok := c.table[string(keyBuf)]
		if !ok { // Dead end in chain
			c.logger.Debug("Generation terminated due to dead-end",
				slog.Int("generated_length", len(words)-len(seed)),
				slog.Int("max_tokens", maxTokens),
			)
			break
		}
		words = append(words, chooseNext(c.rng, e.next, e.total))
	}
	return words
}

// chooseNext picks one continuation with probability proportional to its
// count. total must equal the sum of the counts and be positive.
func chooseNext(rng *rand.Rand, choices []Continuation, total uint64) string {
	randChoice := rng.Uint64N(total)
	for _, choice := range choices {
		if randChoice < uint64(choice.Count) {
			return choice.Token
		}
		randChoice -= uint64(choice.Count)
	}
	// Unreachable while total matches the counts.
	return choices[len(choices)-1].Token
}
