package markov

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

var (
	// ErrEncode reports that a chain could not be serialized.
	ErrEncode = errors.New("markov: encode error")
	// ErrDecode reports that bytes did not decode as a valid chain.
	ErrDecode = errors.New("markov: decode error")
	// ErrIO reports that the underlying byte sink or source failed.
	ErrIO = errors.New("markov: i/o error")
)

// Field names accepted when a chain is encoded as a map instead of an array.
const (
	fieldOrder = "order"
	fieldChain = "chain"
)

// Save writes the chain to w in its binary form: a two-element MessagePack
// array holding the order and the context table. The table is a map from
// each context (an array of Order strings) to its continuations (an array of
// [token, count] pairs). Contexts and continuations are written in the order
// they were first observed, so saving the same chain twice yields the same
// bytes.
//
// Failures of w are reported wrapped in ErrIO.
func (c *Chain) Save(w io.Writer) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	n, err := w.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	c.logger.Debug("Chain saved",
		slog.Int("order", c.order),
		slog.Int("contexts", c.Len()),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler using the format
// described on Save.
func (c *Chain) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.encode(msgpack.NewEncoder(&buf)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Load reads a chain written by Save. Read failures are wrapped in ErrIO;
// bytes that are truncated, corrupt, or of the wrong shape are wrapped in
// ErrDecode.
func Load(r io.Reader, opts ...Option) (*Chain, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	c, err := decodeChain(data)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("Chain loaded",
		slog.Int("order", c.order),
		slog.Int("contexts", c.Len()),
	)
	return c, nil
}

// Restore replaces the chain's order and contents with a chain read from r.
// The loaded chain fully supersedes the current state; nothing is merged. On
// any error the chain is left unchanged. The random source and logger are
// kept.
func (c *Chain) Restore(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return c.UnmarshalBinary(data)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. It has the same
// semantics as Restore.
func (c *Chain) UnmarshalBinary(data []byte) error {
	loaded, err := decodeChain(data)
	if err != nil {
		return err
	}
	c.order, c.table, c.entries = loaded.order, loaded.table, loaded.entries
	if c.rng == nil {
		c.rng = loaded.rng
	}
	if c.logger == nil {
		c.logger = loaded.logger
	}
	return nil
}

func (c *Chain) encode(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(c.order)); err != nil {
		return err
	}
	if err := enc.EncodeMapLen(len(c.entries)); err != nil {
		return err
	}
	for _, e := range c.entries {
		if err := enc.EncodeArrayLen(len(e.context)); err != nil {
			return err
		}
		for _, token := range e.context {
			if err := enc.EncodeString(token); err != nil {
				return err
			}
		}
		if err := enc.EncodeArrayLen(len(e.next)); err != nil {
			return err
		}
		for _, next := range e.next {
			if err := enc.EncodeArrayLen(2); err != nil {
				return err
			}
			if err := enc.EncodeString(next.Token); err != nil {
				return err
			}
			if err := enc.EncodeUint(uint64(next.Count)); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeChain decodes a complete chain from data, rejecting trailing bytes.
func decodeChain(data []byte) (*Chain, error) {
	rd := bytes.NewReader(data)
	c, err := decodeTop(msgpack.NewDecoder(rd))
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if rd.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDecode, rd.Len())
	}
	return c, nil
}

func decodeTop(dec *msgpack.Decoder) (*Chain, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	if msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32 {
		return decodeFields(dec)
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n != 2 {
		return nil, fmt.Errorf("expected 2 top-level fields, got %d", n)
	}
	order, err := decodeOrder(dec)
	if err != nil {
		return nil, err
	}
	entries, err := decodeTable(dec)
	if err != nil {
		return nil, err
	}
	return buildChain(order, entries)
}

// decodeFields decodes the map form {"order": n, "chain": table}.
func decodeFields(dec *msgpack.Decoder) (*Chain, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n != 2 {
		return nil, fmt.Errorf("expected 2 top-level fields, got %d", n)
	}

	var (
		order              int
		entries            []*entry
		haveOrder, haveTab bool
	)
	for range n {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		switch {
		case key == fieldOrder && !haveOrder:
			if order, err = decodeOrder(dec); err != nil {
				return nil, err
			}
			haveOrder = true
		case key == fieldChain && !haveTab:
			if entries, err = decodeTable(dec); err != nil {
				return nil, err
			}
			haveTab = true
		default:
			return nil, fmt.Errorf("unexpected field %q", key)
		}
	}
	return buildChain(order, entries)
}

func decodeOrder(dec *msgpack.Decoder) (int, error) {
	v, err := dec.DecodeUint64()
	if err != nil {
		return 0, err
	}
	if v < 1 || v > math.MaxInt32 {
		return 0, fmt.Errorf("invalid order %d", v)
	}
	return int(v), nil
}

// decodeTable decodes the context table. Context lengths and duplicate
// contexts are checked by buildChain once the order is known.
func decodeTable(dec *msgpack.Decoder) ([]*entry, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.New("table is nil")
	}

	entries := make([]*entry, 0, min(n, maxPrealloc))
	for range n {
		context, err := decodeStrings(dec)
		if err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}
		next, total, err := decodeContinuations(dec)
		if err != nil {
			return nil, fmt.Errorf("continuations of %q: %w", context, err)
		}
		entries = append(entries, &entry{context: context, next: next, total: total})
	}
	return entries, nil
}

func decodeStrings(dec *msgpack.Decoder) ([]string, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.New("array is nil")
	}
	out := make([]string, 0, min(n, maxPrealloc))
	for range n {
		s, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeContinuations(dec *msgpack.Decoder) ([]Continuation, uint64, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, 0, err
	}
	if n <= 0 {
		return nil, 0, errors.New("no continuations")
	}

	next := make([]Continuation, 0, min(n, maxPrealloc))
	var total uint64
	for range n {
		l, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, 0, err
		}
		if l != 2 {
			return nil, 0, fmt.Errorf("expected [token, count] pair, got %d elements", l)
		}
		token, err := dec.DecodeString()
		if err != nil {
			return nil, 0, err
		}
		count, err := dec.DecodeUint64()
		if err != nil {
			return nil, 0, err
		}
		if count < 1 || count > math.MaxUint32 {
			return nil, 0, fmt.Errorf("invalid count %d for token %q", count, token)
		}
		if slices.ContainsFunc(next, func(c Continuation) bool { return c.Token == token }) {
			return nil, 0, fmt.Errorf("duplicate token %q", token)
		}
		next = append(next, Continuation{Token: token, Count: uint32(count)})
		total += count
	}
	return next, total, nil
}

// buildChain assembles a chain from decoded entries, enforcing the context
// invariants.
func buildChain(order int, entries []*entry) (*Chain, error) {
	if order < 1 {
		return nil, fmt.Errorf("missing field %q", fieldOrder)
	}
	if entries == nil {
		return nil, fmt.Errorf("missing field %q", fieldChain)
	}

	c := newChain(order)
	var keyBuf []byte
	for _, e := range entries {
		if len(e.context) != order {
			return nil, fmt.Errorf("context %q has %d tokens, want %d", e.context, len(e.context), order)
		}
		keyBuf = appendContextKey(keyBuf[:0], e.context)
		if _, dup := c.table[string(keyBuf)]; dup {
			return nil, fmt.Errorf("duplicate context %q", e.context)
		}
		c.insert(string(keyBuf), e)
	}
	return c, nil
}
