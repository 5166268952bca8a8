package markov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
)

// ErrInvalidOrder is returned (or panicked with, from New) when a chain is
// configured with an order less than one.
var ErrInvalidOrder = errors.New("markov: order must be at least 1")

// Continuation is a token observed after a context, together with the number
// of times it was observed there.
type Continuation struct {
	Token string `json:"token"`
	Count uint32 `json:"count"`
}

// entry is a single context and its continuations in first-observed order.
type entry struct {
	context []string
	next    []Continuation
	total   uint64 // sum of next[i].Count
}

// add increments the count for token, appending it if it is new.
func (e *entry) add(token string) {
	for i := range e.next {
		if e.next[i].Token == token {
			// Counts saturate rather than wrap so they never drop below one.
			if e.next[i].Count < math.MaxUint32 {
				e.next[i].Count++
				e.total++
			}
			return
		}
	}
	e.next = append(e.next, Continuation{Token: token, Count: 1})
	e.total++
}

// Chain is a fixed-order Markov chain over string tokens.
//
// The zero value is not usable; create chains with New or NewChecked.
type Chain struct {
	order   int
	table   map[string]*entry
	entries []*entry // every value of table, in insertion order
	rng     *rand.Rand
	logger  *slog.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithRand sets the random source used for generation. A seeded source makes
// generation reproducible. Default: an unseeded PCG source.
func WithRand(r *rand.Rand) Option {
	return func(c *Chain) {
		if r != nil {
			c.rng = r
		}
	}
}

// WithLogger sets the logger for the chain. By default, all logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty chain of the given order. It panics with
// ErrInvalidOrder if order is less than one; use NewChecked to get an
// error instead.
func New(order int, opts ...Option) *Chain {
	c, err := NewChecked(order, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// NewChecked creates an empty chain of the given order, returning
// ErrInvalidOrder if order is less than one.
func NewChecked(order int, opts ...Option) (*Chain, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOrder, order)
	}
	c := newChain(order)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newChain(order int) *Chain {
	return &Chain{
		order:  order,
		table:  make(map[string]*entry),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the chain. A nil logger is ignored.
func (c *Chain) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetRand replaces the random source used for generation. A nil source is
// ignored.
func (c *Chain) SetRand(r *rand.Rand) {
	if r != nil {
		c.rng = r
	}
}

// Order returns the number of preceding tokens used as context.
func (c *Chain) Order() int {
	return c.order
}

// Len returns the number of distinct contexts stored in the chain.
func (c *Chain) Len() int {
	return len(c.entries)
}

// IsEmpty reports whether the chain has no contexts.
func (c *Chain) IsEmpty() bool {
	return c.Len() == 0
}

// Contexts returns a copy of every context in the chain, in the order they
// were first observed.
func (c *Chain) Contexts() [][]string {
	out := make([][]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = slices.Clone(e.context)
	}
	return out
}

// Continuations returns a copy of the continuations recorded for context,
// in first-observed order. The boolean is false if the context is unknown.
func (c *Chain) Continuations(context ...string) ([]Continuation, bool) {
	if len(context) != c.order {
		return nil, false
	}
	e, ok := c.table[string(appendContextKey(nil, context))]
	if !ok {
		return nil, false
	}
	return slices.Clone(e.next), true
}

// Clone returns a deep copy of the chain. The copy shares the logger but gets
// its own random source seeded from the original's.
func (c *Chain) Clone() *Chain {
	cp := &Chain{
		order:   c.order,
		table:   make(map[string]*entry, len(c.table)),
		entries: make([]*entry, 0, len(c.entries)),
		rng:     rand.New(rand.NewPCG(c.rng.Uint64(), c.rng.Uint64())),
		logger:  c.logger,
	}
	var keyBuf []byte
	for _, e := range c.entries {
		ne := &entry{
			context: slices.Clone(e.context),
			next:    slices.Clone(e.next),
			total:   e.total,
		}
		keyBuf = appendContextKey(keyBuf[:0], ne.context)
		cp.table[string(keyBuf)] = ne
		cp.entries = append(cp.entries, ne)
	}
	return cp
}

// insert stores a new entry for context. The caller guarantees the context is
// not already present and that its length equals the chain's order.
func (c *Chain) insert(key string, e *entry) {
	c.table[key] = e
	c.entries = append(c.entries, e)
}

// appendContextKey appends an injective encoding of context to buf. Each
// token is written as its decimal byte length, a colon, and its bytes, so no
// two distinct contexts share a key regardless of token content.
func appendContextKey(buf []byte, context []string) []byte {
	for _, token := range context {
		buf = strconv.AppendInt(buf, int64(len(token)), 10)
		buf = append(buf, ':')
		buf = append(buf, token...)
	}
	return buf
}
