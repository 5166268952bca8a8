/*
Package markov provides a small, fast, in-memory toolkit for building
fixed-order Markov chains over token sequences and generating new text
from them.

A Chain learns which tokens tend to follow each run of Order preceding
tokens (a context). Training is incremental and never carries context
across separate Train calls. Generation picks a seed context uniformly at
random and then repeatedly samples the next token in proportion to how
often it was observed. GenerateStream delivers the same walk token by token
on a channel.

Trained chains can be persisted in a compact MessagePack encoding with
Save and Load, or exported as human-readable JSON with ExportJSON.

A Chain is not safe for concurrent mutation. Once training has finished it
may be shared freely for generation only if each goroutine uses its own
random source (see Clone and WithRand).
*/
package markov
