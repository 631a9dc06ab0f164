package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"postmedia/internal/batch"
	errs "postmedia/pkg/errors"
	"postmedia/pkg/logger"
	"postmedia/pkg/normalize"
	"postmedia/pkg/ui"
)

var (
	jsonOutput  bool
	noMetadata  bool
	maxAttempts int
	timeout     time.Duration
	disabled    []string
	concurrency int
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve <url>...",
	Short: "Resolve post URLs to image URLs",
	Long: `Resolve one or more post URLs and print the image URLs found, one per line.

Exits non-zero when any URL yields no media.`,
	Example: `  postmedia resolve https://www.instagram.com/p/C0ffee123/
  postmedia resolve --json https://example.com/article
  postmedia resolve --disable metadata,document https://www.instagram.com/p/C0ffee123/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	resolveCmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "skip the external metadata extractor")
	resolveCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "attempts per fetch (default from config)")
	resolveCmd.Flags().DurationVar(&timeout, "timeout", 0, "timeout for each network step: embed, document and metadata (default from config)")
	resolveCmd.Flags().IntVar(&concurrency, "concurrency", 4, "urls resolved in parallel")
	resolveCmd.Flags().StringSliceVar(&disabled, "disable", nil, "strategies to skip (nested-url, direct-extension, embed, metadata, document)")
}

type resolveOutput struct {
	URL      string   `json:"url"`
	Strategy string   `json:"strategy,omitempty"`
	Media    []string `json:"media"`
	Error    string   `json:"error,omitempty"`
}

func resolveFlags() map[string]interface{} {
	flags := globalFlags()
	if noMetadata {
		flags["no-metadata"] = true
	}
	if maxAttempts > 0 {
		flags["max-attempts"] = maxAttempts
	}
	if timeout > 0 {
		flags["timeout"] = timeout
	}
	if len(disabled) > 0 {
		flags["disable"] = disabled
	}
	return flags
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(resolveFlags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return resolveAll(ctx, newResolver(cfg), args, cmd.OutOrStdout())
}

// resolveAll resolves every URL, writing results to w in input order. It keeps
// going after an empty result and reports ErrNoMedia once at the end.
func resolveAll(ctx context.Context, res batch.MediaResolver, urls []string, w io.Writer) error {
	var (
		outputs []resolveOutput
		failed  int
	)

	for _, result := range batch.ResolveAll(ctx, res, urls, concurrency, logger.GetLogger()) {
		raw := result.Job.URL
		out := resolveOutput{URL: raw, Strategy: result.Strategy, Media: result.Media}
		if result.Empty() {
			failed++
			out.Media = []string{}
			out.Error = errs.ErrNoMedia.Error()
			if !jsonOutput {
				ui.PrintError("No media found", raw)
			}
		}
		outputs = append(outputs, out)

		if jsonOutput {
			continue
		}
		for _, u := range result.Media {
			if normalize.IsDataURI(u) {
				ui.PrintWarning("Data URI result", raw)
			}
			fmt.Fprintln(w, u)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(outputs); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d urls: %w", failed, len(urls), errs.ErrNoMedia)
	}
	return nil
}
