package markov

import (
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"slices"
	"strings"
	"testing"
)

func TestGenerateEmpty(t *testing.T) {
	c := New(1)
	if text, ok := c.Generate(16); ok || text != "" {
		t.Errorf("Generate() on empty chain = (%q, %v), want (\"\", false)", text, ok)
	}
	if words, ok := c.GenerateTokens(0); ok || words != nil {
		t.Errorf("GenerateTokens() on empty chain = (%v, %v), want (nil, false)", words, ok)
	}

	// Training on input that is too short keeps the chain empty.
	c = newTrainedChain(t, 3, "too short")
	if _, ok := c.Generate(16); ok {
		t.Error("Generate() reported data after training only on short input")
	}
}

func TestGenerateLength(t *testing.T) {
	c := newTrainedChain(t, 1, "a a a a")

	testCases := []struct {
		maxTokens int
		expected  string
	}{
		{maxTokens: -3, expected: "a"},
		{maxTokens: 0, expected: "a"},
		{maxTokens: 1, expected: "a a"},
		{maxTokens: 2, expected: "a a a"},
		{maxTokens: 3, expected: "a a a a"},
		{maxTokens: 10, expected: strings.TrimSpace(strings.Repeat("a ", 11))},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprint("max", tc.maxTokens), func(t *testing.T) {
			output, ok := c.Generate(tc.maxTokens)
			if !ok {
				t.Fatal("Generate() reported no data")
			}
			if output != tc.expected {
				t.Errorf("Generate(%d) = %q, want %q", tc.maxTokens, output, tc.expected)
			}
		})
	}
}

func TestGenerateStopsAtDeadEnd(t *testing.T) {
	c := newTrainedChain(t, 2, loremText)

	for i := 0; i < 50; i++ {
		output, ok := c.Generate(16)
		if !ok {
			t.Fatal("Generate() reported no data")
		}
		if !strings.HasSuffix(output, "dolor sit amet") {
			t.Errorf("Generate() = %q, want suffix %q", output, "dolor sit amet")
		}
	}
}

func TestGenerateSingleContinuationIsDeterministic(t *testing.T) {
	c := newTrainedChain(t, 2, loremText, "dolor sit amet consectetur", "sit amet lorem ipsum")

	for i := 0; i < 200; i++ {
		words, _ := c.GenerateTokens(12)
		for j := 0; j+2 < len(words); j++ {
			if words[j] == "dolor" && words[j+1] == "sit" && words[j+2] != "amet" {
				t.Fatalf("context [dolor sit] continued with %q in %v", words[j+2], words)
			}
		}
	}
}

func TestGenerateZeroTokensReturnsSeed(t *testing.T) {
	c := newTrainedChain(t, 2, loremText)

	for i := 0; i < 20; i++ {
		words, ok := c.GenerateTokens(0)
		if !ok {
			t.Fatal("GenerateTokens() reported no data")
		}
		if len(words) != c.Order() {
			t.Fatalf("expected the %d-token seed phrase, got %v", c.Order(), words)
		}
		if _, known := c.Continuations(words...); !known {
			t.Errorf("seed phrase %v is not a stored context", words)
		}
	}
}

func TestGenerateReproducibleWithSeededRand(t *testing.T) {
	text := "the cat sat on the mat and the dog sat on the cat and the mat sat on the dog"
	a := New(1, WithRand(rand.New(rand.NewPCG(7, 11))))
	b := New(1, WithRand(rand.New(rand.NewPCG(7, 11))))
	a.Train(Fields(text))
	b.Train(Fields(text))

	for i := 0; i < 10; i++ {
		x, _ := a.Generate(20)
		y, _ := b.Generate(20)
		if x != y {
			t.Fatalf("run %d: seeded generators diverged: %q vs %q", i, x, y)
		}
	}

	// Reseeding through SetRand replays the same sequence.
	a.SetRand(rand.New(rand.NewPCG(3, 5)))
	first, _ := a.Generate(20)
	a.SetRand(rand.New(rand.NewPCG(3, 5)))
	if again, _ := a.Generate(20); again != first {
		t.Errorf("SetRand did not reset the sequence: %q vs %q", first, again)
	}
}

func TestGenerateSeedIsUniformOverContexts(t *testing.T) {
	// [x] occurs four times, [y] four times and [z] once, but each is an
	// equally likely seed.
	c := newTrainedChain(t, 1, "x y x y x y x y z w")
	if c.Len() != 3 {
		t.Fatalf("expected 3 contexts, got %v", c.Contexts())
	}

	const runs = 30000
	counts := make(map[string]int)
	for i := 0; i < runs; i++ {
		words, _ := c.GenerateTokens(0)
		counts[words[0]]++
	}
	for _, ctx := range []string{"x", "y", "z"} {
		freq := float64(counts[ctx]) / runs
		if math.Abs(freq-1.0/3) > 0.02 {
			t.Errorf("seed %q chosen with frequency %.4f, want about 0.3333", ctx, freq)
		}
	}
}

func TestGenerateWeightedFrequencies(t *testing.T) {
	// Context [s] is followed by a once, b twice and c three times.
	c := newTrainedChain(t, 1, "s a s b s b s c s c s c")

	const runs = 60000
	counts := make(map[string]int)
	for i := 0; i < runs; i++ {
		words, ok := c.GenerateFrom([]string{"s"}, 1)
		if !ok || len(words) != 2 {
			t.Fatalf("GenerateFrom() = (%v, %v)", words, ok)
		}
		counts[words[1]]++
	}

	want := map[string]float64{"a": 1.0 / 6, "b": 2.0 / 6, "c": 3.0 / 6}
	for token, p := range want {
		freq := float64(counts[token]) / runs
		if math.Abs(freq-p) > 0.01 {
			t.Errorf("token %q sampled with frequency %.4f, want %.4f", token, freq, p)
		}
	}
	if len(counts) != len(want) {
		t.Errorf("sampled unexpected tokens: %v", counts)
	}
}

func TestGenerateFrom(t *testing.T) {
	c := newTrainedChain(t, 2, loremText)

	testCases := []struct {
		name      string
		seed      []string
		maxTokens int
		expected  []string
		ok        bool
	}{
		{
			name:      "Known seed runs to the dead end",
			seed:      []string{"lorem", "ipsum"},
			maxTokens: 10,
			expected:  []string{"lorem", "ipsum", "dolor", "sit", "amet"},
			ok:        true,
		},
		{
			name:      "Stopped by maxTokens",
			seed:      []string{"lorem", "ipsum"},
			maxTokens: 1,
			expected:  []string{"lorem", "ipsum", "dolor"},
			ok:        true,
		},
		{
			name:      "Unknown seed is returned unchanged",
			seed:      []string{"green", "fish"},
			maxTokens: 10,
			expected:  []string{"green", "fish"},
			ok:        true,
		},
		{
			name:      "Seed of the wrong length",
			seed:      []string{"lorem"},
			maxTokens: 10,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seed := slices.Clone(tc.seed)
			words, ok := c.GenerateFrom(seed, tc.maxTokens)
			if ok != tc.ok {
				t.Fatalf("GenerateFrom() ok = %v, want %v", ok, tc.ok)
			}
			if !reflect.DeepEqual(words, tc.expected) {
				t.Errorf("GenerateFrom() = %v, want %v", words, tc.expected)
			}
			if !reflect.DeepEqual(seed, tc.seed) {
				t.Errorf("GenerateFrom() modified its seed: %v", seed)
			}
		})
	}

	if _, ok := New(2).GenerateFrom([]string{"lorem", "ipsum"}, 3); ok {
		t.Error("GenerateFrom() on an empty chain reported data")
	}
}

func TestGenerateDoesNotMutate(t *testing.T) {
	c := newTrainedChain(t, 1, "a b a c b a")
	before := c.Export()
	for i := 0; i < 100; i++ {
		_, _ = c.Generate(25)
	}
	if !reflect.DeepEqual(before, c.Export()) {
		t.Error("generation modified the chain")
	}
}

func BenchmarkGenerate(b *testing.B) {
	c := New(2)
	c.Train(Fields(createBenchmarkCorpus()))

	for _, length := range []int{10, 50, 250} {
		b.Run(fmt.Sprintf("Length%d", length), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				s, ok := c.Generate(length)
				if !ok {
					b.Fatal("Generate() reported no data")
				}
				b.SetBytes(int64(len(s)))
			}
		})
	}
}
