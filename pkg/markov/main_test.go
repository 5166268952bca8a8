package markov

import (
	"go/build"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const loremText = "lorem ipsum dolor sit amet"

// newTestChain creates a chain with a deterministic random source.
func newTestChain(t testing.TB, order int) *Chain {
	t.Helper()
	c, err := NewChecked(order, WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("NewChecked(%d) error = %v", order, err)
	}
	return c
}

// newTrainedChain is a convenience helper that also trains the chain on each
// of the given texts, one Train call per text.
func newTrainedChain(t testing.TB, order int, texts ...string) *Chain {
	t.Helper()
	c := newTestChain(t, order)
	for _, text := range texts {
		c.Train(Fields(text))
	}
	return c
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a corpus for benchmarking.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				benchmarkCorpus = "this is a fallback corpus for benchmarking. it is not very long but will prevent a crash. "
				return
			}
			sb.Write(content)
			sb.WriteString("\n")
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
