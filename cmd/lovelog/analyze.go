package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/analytics"
	"github.com/ConfabulousDev/lovelog/internal/validation"
	"github.com/ConfabulousDev/lovelog/internal/vocab"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	me       string
	asJSON   bool
	now      string
	nouns    bool
	maxBytes int64
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze a talk export",
		Long: `Analyze a LINE talk export and print the text report.

FILE may be "-" for standard input. Files ending in .zst are decompressed
first, matching what the bot archives.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.me, "me", "", "your display name in the export")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().StringVar(&opts.now, "now", "", "analysis date as YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&opts.nouns, "nouns", false, "rank nouns with the Japanese tokenizer")
	cmd.Flags().Int64Var(&opts.maxBytes, "max-bytes", 64<<20, "refuse inputs larger than this")
	return cmd
}

func runAnalyze(cmd *cobra.Command, path string, opts analyzeOptions) error {
	if err := validation.ValidateNameHint(opts.me); err != nil {
		return err
	}

	analysisOpts := analytics.Options{}
	if opts.now != "" {
		now, err := time.ParseInLocation("2006-01-02", opts.now, analytics.DefaultLocation)
		if err != nil {
			return fmt.Errorf("invalid --now %q: want YYYY-MM-DD", opts.now)
		}
		analysisOpts.Now = now
	}
	if opts.nouns {
		extractor, err := vocab.New()
		if err != nil {
			return err
		}
		analysisOpts.Nouns = extractor
	}

	raw, err := readInput(cmd.InOrStdin(), path, opts.maxBytes)
	if err != nil {
		return err
	}

	messages, err := analytics.NewParser(nil).ParseReader(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return fmt.Errorf("no messages found in %s", path)
	}

	report := analytics.Analyze(messages, opts.me, analysisOpts)

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err = fmt.Fprintln(out, analytics.BuildTextReport(report))
	return err
}

// readInput loads path (or stdin for "-"), decompressing .zst files.
func readInput(stdin io.Reader, path string, maxBytes int64) ([]byte, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	raw, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes", path, maxBytes)
	}
	return raw, nil
}
