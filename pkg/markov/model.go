package markov

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// ExportedChain is the human-readable representation of a chain, used for
// JSON-based import and export.
type ExportedChain struct {
	Order    int               `json:"order"`
	Contexts []ExportedContext `json:"contexts"`
}

// ExportedContext is a single context and its continuations within an
// ExportedChain.
type ExportedContext struct {
	Context []string       `json:"context"`
	Next    []Continuation `json:"next"`
}

// Export returns the chain's contents in first-observed order.
func (c *Chain) Export() ExportedChain {
	exported := ExportedChain{
		Order:    c.order,
		Contexts: make([]ExportedContext, 0, len(c.entries)),
	}
	for _, e := range c.entries {
		exported.Contexts = append(exported.Contexts, ExportedContext{
			Context: append([]string(nil), e.context...),
			Next:    append([]Continuation(nil), e.next...),
		})
	}
	return exported
}

// ExportJSON serializes the chain as indented JSON and writes it to w. This
// is useful for inspecting a model or moving it between tools that do not
// speak MessagePack.
func (c *Chain) ExportJSON(w io.Writer) error {
	exported := c.Export()

	c.logger.Info("Chain exported",
		slog.Int("order", exported.Order),
		slog.Int("contexts_exported", len(exported.Contexts)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exported); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// ImportJSON reads a chain written by ExportJSON. Malformed JSON and
// contents that break the chain's invariants are reported wrapped in
// ErrDecode.
func ImportJSON(r io.Reader, opts ...Option) (*Chain, error) {
	var imported ExportedChain
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return nil, fmt.Errorf("%w: failed to decode json chain: %w", ErrDecode, err)
	}
	c, err := imported.Chain(opts...)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Chain imported",
		slog.Int("order", c.order),
		slog.Int("contexts_imported", c.Len()),
	)
	return c, nil
}

// Chain builds a chain from the exported form, validating it the same way
// the binary decoder does.
func (x ExportedChain) Chain(opts ...Option) (*Chain, error) {
	entries := make([]*entry, 0, len(x.Contexts))
	for _, ctx := range x.Contexts {
		if len(ctx.Next) == 0 {
			return nil, fmt.Errorf("%w: context %q has no continuations", ErrDecode, ctx.Context)
		}
		e := &entry{context: append([]string(nil), ctx.Context...)}
		seen := make(map[string]struct{}, len(ctx.Next))
		for _, next := range ctx.Next {
			if next.Count < 1 {
				return nil, fmt.Errorf("%w: invalid count %d for token %q", ErrDecode, next.Count, next.Token)
			}
			if _, dup := seen[next.Token]; dup {
				return nil, fmt.Errorf("%w: duplicate token %q in context %q", ErrDecode, next.Token, ctx.Context)
			}
			seen[next.Token] = struct{}{}
			e.next = append(e.next, next)
			e.total += uint64(next.Count)
		}
		entries = append(entries, e)
	}

	c, err := buildChain(x.Order, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
