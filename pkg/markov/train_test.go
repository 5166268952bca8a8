package markov

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestTrainShortInput(t *testing.T) {
	for order := 1; order <= 4; order++ {
		for n := 0; n <= order; n++ {
			c := newTestChain(t, order)
			tokens := make([]string, n)
			for i := range tokens {
				tokens[i] = fmt.Sprint("w", i)
			}
			c.Train(tokens)
			if c.Len() != 0 {
				t.Errorf("order %d, %d tokens: expected empty chain, got %d contexts", order, n, c.Len())
			}
		}
	}
}

func TestTrain(t *testing.T) {
	testCases := []struct {
		name     string
		order    int
		texts    []string
		expected ExportedChain
	}{
		{
			name:  "Repeated token",
			order: 1,
			texts: []string{"a a a a"},
			expected: ExportedChain{Order: 1, Contexts: []ExportedContext{
				{Context: []string{"a"}, Next: []Continuation{{"a", 3}}},
			}},
		},
		{
			name:  "Sliding window",
			order: 2,
			texts: []string{loremText},
			expected: ExportedChain{Order: 2, Contexts: []ExportedContext{
				{Context: []string{"lorem", "ipsum"}, Next: []Continuation{{"dolor", 1}}},
				{Context: []string{"ipsum", "dolor"}, Next: []Continuation{{"sit", 1}}},
				{Context: []string{"dolor", "sit"}, Next: []Continuation{{"amet", 1}}},
			}},
		},
		{
			name:  "Counts aggregate in first-observed order",
			order: 1,
			texts: []string{"a c a b a b"},
			expected: ExportedChain{Order: 1, Contexts: []ExportedContext{
				{Context: []string{"a"}, Next: []Continuation{{"c", 1}, {"b", 2}}},
				{Context: []string{"c"}, Next: []Continuation{{"a", 1}}},
				{Context: []string{"b"}, Next: []Continuation{{"a", 1}}},
			}},
		},
		{
			name:  "Context order matters",
			order: 2,
			texts: []string{"a b x", "b a y"},
			expected: ExportedChain{Order: 2, Contexts: []ExportedContext{
				{Context: []string{"a", "b"}, Next: []Continuation{{"x", 1}}},
				{Context: []string{"b", "a"}, Next: []Continuation{{"y", 1}}},
			}},
		},
		{
			name:  "Separate calls accumulate",
			order: 1,
			texts: []string{"a b", "a b", "a c"},
			expected: ExportedChain{Order: 1, Contexts: []ExportedContext{
				{Context: []string{"a"}, Next: []Continuation{{"b", 2}, {"c", 1}}},
			}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTrainedChain(t, tc.order, tc.texts...)
			if got := c.Export(); !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("got %+v, want %+v", got, tc.expected)
			}
			if c.Len() != len(tc.expected.Contexts) {
				t.Errorf("Len() = %d, want %d", c.Len(), len(tc.expected.Contexts))
			}
		})
	}
}

func TestTrainDoesNotSpanCalls(t *testing.T) {
	c := newTestChain(t, 1)
	c.Train([]string{"a", "b", "c"})
	c.Train([]string{"d", "e"})

	if _, ok := c.Continuations("c"); ok {
		t.Error("found a context spanning c -> d across separate Train calls")
	}
	if c.Len() != 3 {
		t.Errorf("expected contexts [a] [b] [d], got %v", c.Contexts())
	}

	s := newTestChain(t, 1)
	if _, err := s.TrainReader(strings.NewReader("a b c"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TrainReader(strings.NewReader("d e"), nil); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c.Export(), s.Export()) {
		t.Errorf("TrainReader disagrees with Train: %+v vs %+v", s.Export(), c.Export())
	}
}

func TestTrainStreamMatchesTrain(t *testing.T) {
	text := "one fish two fish\nred fish   blue fish\tone fish two fish"
	for order := 1; order <= 3; order++ {
		want := newTrainedChain(t, order, text)

		got := newTestChain(t, order)
		n, err := got.TrainReader(strings.NewReader(text), NewWhitespaceTokenizer())
		if err != nil {
			t.Fatalf("TrainReader() failed: %v", err)
		}
		if n != 12 {
			t.Errorf("TrainReader() read %d tokens, want 12", n)
		}
		if !reflect.DeepEqual(got.Export(), want.Export()) {
			t.Errorf("order %d: stream training got %+v, want %+v", order, got.Export(), want.Export())
		}
	}
}

// failingStream yields its tokens and then fails.
type failingStream struct {
	tokens []string
	err    error
}

func (s *failingStream) Next() (string, error) {
	if len(s.tokens) == 0 {
		return "", s.err
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, nil
}

func TestTrainStreamError(t *testing.T) {
	boom := errors.New("boom")
	c := newTestChain(t, 1)

	n, err := c.TrainStream(&failingStream{tokens: []string{"a", "b", "c"}, err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped stream error, got %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 tokens consumed, got %d", n)
	}
	if c.Len() != 2 {
		t.Errorf("expected links learned before the failure to be kept, got %d contexts", c.Len())
	}

	n, err = newTestChain(t, 1).TrainStream(SliceStream(nil))
	if err != nil || n != 0 {
		t.Errorf("empty stream: n = %d, err = %v", n, err)
	}
	if _, err = c.TrainStream(&failingStream{err: io.EOF}); err != nil {
		t.Errorf("io.EOF should end the stream without error, got %v", err)
	}
}

func BenchmarkTrain(b *testing.B) {
	tokens := Fields(createBenchmarkCorpus())

	for _, order := range []int{1, 2, 3, 4, 5} {
		b.Run(fmt.Sprintf("Order%d", order), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				c := New(order)
				c.Train(tokens)
			}
		})
	}
}
