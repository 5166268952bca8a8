package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CTAG07/markovchain/pkg/markov"
)

const (
	formatJSON    = "json"
	formatMsgpack = "msgpack"
)

func init() {
	exportCmd := &cobra.Command{
		Use:   "export <model>",
		Short: "Write a stored model to stdout",
		Long:  "Write a stored model to stdout as indented JSON or in the binary MessagePack model format.",
		Args:  cobra.ExactArgs(1),
		Run:   runExport,
	}
	exportCmd.Flags().String("format", formatJSON, "Output format: json or msgpack")

	importCmd := &cobra.Command{
		Use:   "import <name> <file>",
		Short: "Store a model read from a file",
		Long:  "Store a model read from a JSON export or a MessagePack model file, replacing any model of the same name. Use - to read stdin.",
		Args:  cobra.ExactArgs(2),
		Run:   runImport,
	}
	importCmd.Flags().String("format", "", "Input format: json or msgpack (default: from the file extension)")

	rootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")
	if format != formatJSON && format != formatMsgpack {
		exitErr("export", fmt.Errorf("unknown format %q", format))
	}

	a := mustOpenApp()
	defer a.Close()

	chain, err := a.store.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("export", err)
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	if format == formatJSON {
		err = chain.ExportJSON(w)
	} else {
		err = chain.Save(w)
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		exitErr("export", err)
	}
}

func runImport(cmd *cobra.Command, args []string) {
	name, path := args[0], args[1]
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = formatMsgpack
		if strings.HasSuffix(strings.ToLower(path), ".json") {
			format = formatJSON
		}
	}

	a := mustOpenApp()
	defer a.Close()

	r := cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			exitErr("import", err)
		}
		defer func(f *os.File) {
			_ = f.Close()
		}(f)
		r = f
	}

	var (
		chain *markov.Chain
		err   error
	)
	switch format {
	case formatJSON:
		chain, err = markov.ImportJSON(r)
	case formatMsgpack:
		chain, err = markov.Load(r)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		exitErr("import", err)
	}

	info, err := a.store.Put(cmd.Context(), name, chain)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(cmd, info)
}
