package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/CTAG07/markovchain/pkg/markov"
)

func init() {
	cmd := &cobra.Command{
		Use:   "train <model> [files...]",
		Short: "Train a model from text",
		Long: "Train a model from whitespace-separated text. Each file is one training input; " +
			"with no files the text is read from stdin. The model is created if it does not exist.",
		Args: cobra.MinimumNArgs(1),
		Run:  runTrain,
	}

	cmd.Flags().IntP("order", "o", 0, "Order for a new model (default: default_order from the config)")
	cmd.Flags().String("file", "", "Train a standalone model file instead of the database")

	rootCmd.AddCommand(cmd)
}

// trainInputs feeds every input to chain, one training call per input.
func trainInputs(chain *markov.Chain, files []string, stdin io.Reader) (int, error) {
	tok := markov.NewWhitespaceTokenizer()
	if len(files) == 0 {
		return chain.TrainReader(stdin, tok)
	}

	total := 0
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return total, err
		}
		n, err := chain.TrainReader(f, tok)
		_ = f.Close()
		total += n
		if err != nil {
			return total, fmt.Errorf("%s: %w", path, err)
		}
	}
	return total, nil
}

func runTrain(cmd *cobra.Command, args []string) {
	name, files := args[0], args[1:]
	order, _ := cmd.Flags().GetInt("order")
	file, _ := cmd.Flags().GetString("file")

	if file != "" {
		config, logger, err := loadSettings()
		if err != nil {
			exitErr("load config", err)
		}
		if order == 0 {
			order = config.DefaultOrder
		}
		chain, err := markov.LoadFile(file, markov.WithLogger(logger))
		if errors.Is(err, fs.ErrNotExist) {
			chain, err = markov.NewChecked(order, markov.WithLogger(logger))
		}
		if err != nil {
			exitErr("load model file", err)
		}
		n, err := trainInputs(chain, files, cmd.InOrStdin())
		if err != nil {
			exitErr("train", err)
		}
		if err = chain.SaveFile(file); err != nil {
			exitErr("save model file", err)
		}
		logger.Info("Model file trained", "file", file, "tokens", n, "contexts", chain.Len())
		return
	}

	a := mustOpenApp()
	defer a.Close()
	if order == 0 {
		order = a.config.DefaultOrder
	}

	var n int
	info, err := a.store.Update(cmd.Context(), name, order, func(chain *markov.Chain) error {
		var err error
		n, err = trainInputs(chain, files, cmd.InOrStdin())
		return err
	})
	if err != nil {
		exitErr("train", err)
	}
	a.logger.Info("Model trained", "model_name", info.Name, "tokens", n, "contexts", info.Contexts)
}
