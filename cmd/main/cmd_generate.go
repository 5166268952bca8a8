package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CTAG07/markovchain/pkg/markov"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate <model>",
		Short: "Generate text from a model",
		Long: "Generate text by walking a model from a random context. Prints one line per sample. " +
			"Exits with status 1 and \"no data\" when the model has never been trained.",
		Args: cobra.ExactArgs(1),
		Run:  runGenerate,
	}

	cmd.Flags().IntP("length", "l", 0, "Maximum tokens appended to the seed; 0 prints the seed alone (default: default_length from the config)")
	cmd.Flags().IntP("count", "n", 1, "Number of samples")
	cmd.Flags().Uint64("seed", 0, "Random seed for reproducible output (0 picks a random seed)")
	cmd.Flags().String("seed-text", "", "Start from this context instead of a random one")
	cmd.Flags().String("file", "", "Read a standalone model file instead of the database")

	rootCmd.AddCommand(cmd)
}

// lengthOrDefault returns --length when it was given, including an explicit
// 0, and def otherwise.
func lengthOrDefault(cmd *cobra.Command, def int) int {
	if !cmd.Flags().Changed("length") {
		return def
	}
	length, _ := cmd.Flags().GetInt("length")
	return length
}

// sample produces one line of output from chain.
func sample(chain *markov.Chain, seed []string, length int) (string, bool) {
	if len(seed) == 0 {
		return chain.Generate(length)
	}
	tokens, ok := chain.GenerateFrom(seed, length)
	return strings.Join(tokens, " "), ok
}

func runGenerate(cmd *cobra.Command, args []string) {
	count, _ := cmd.Flags().GetInt("count")
	seed, _ := cmd.Flags().GetUint64("seed")
	seedText, _ := cmd.Flags().GetString("seed-text")
	file, _ := cmd.Flags().GetString("file")

	var (
		chain  *markov.Chain
		length int
		err    error
	)
	if file != "" {
		var config *Config
		if config, _, err = loadSettings(); err != nil {
			exitErr("load config", err)
		}
		length = lengthOrDefault(cmd, config.DefaultLength)
		chain, err = markov.LoadFile(file)
	} else {
		a := mustOpenApp()
		length = lengthOrDefault(cmd, a.config.DefaultLength)
		chain, err = a.store.Get(cmd.Context(), args[0])
		a.Close()
	}
	if err != nil {
		exitErr("load model", err)
	}

	if seed != 0 {
		chain.SetRand(rand.New(rand.NewPCG(seed, seed)))
	}

	start := markov.Fields(seedText)
	if len(start) != 0 && len(start) != chain.Order() {
		exitErr("generate", fmt.Errorf("--seed-text must have exactly %d tokens, got %d", chain.Order(), len(start)))
	}

	out := cmd.OutOrStdout()
	for i := 0; i < count; i++ {
		text, ok := sample(chain, start, length)
		if !ok {
			fmt.Fprintln(os.Stderr, "no data")
			os.Exit(1)
		}
		fmt.Fprintln(out, text)
	}
}
