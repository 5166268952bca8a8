package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CTAG07/markovchain/pkg/markov"
	"github.com/CTAG07/markovchain/pkg/store"
)

func init() {
	statsCmd := &cobra.Command{
		Use:   "stats <model>",
		Short: "Show model statistics",
		Args:  cobra.ExactArgs(1),
		Run:   runStats,
	}
	modelsCmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"ls"},
		Short:   "List stored models",
		Args:    cobra.NoArgs,
		Run:     runModels,
	}
	rmCmd := &cobra.Command{
		Use:   "rm <model>",
		Short: "Remove a stored model",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	rootCmd.AddCommand(statsCmd, modelsCmd, rmCmd)
}

// ModelStats is the stats output: stored metadata plus chain statistics.
type ModelStats struct {
	store.ModelInfo
	markov.Stats
}

// MarshalJSON flattens both halves; the embedded types share field names.
func (m ModelStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":              m.Id,
		"name":            m.Name,
		"updated_at":      m.UpdatedAt,
		"order":           m.Stats.Order,
		"contexts":        m.Stats.Contexts,
		"links":           m.Links,
		"total_frequency": m.TotalFrequency,
		"vocabulary":      m.Vocabulary,
	})
}

func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func runStats(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	info, err := a.store.Info(cmd.Context(), args[0])
	if err != nil {
		exitErr("stats", err)
	}
	chain, err := a.store.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(cmd, ModelStats{ModelInfo: info, Stats: chain.Stats()})
}

func runModels(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	models, err := a.store.List(cmd.Context())
	if err != nil {
		exitErr("list", err)
	}
	printJSON(cmd, models)
}

func runRm(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	if err := a.store.Remove(cmd.Context(), args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
}
