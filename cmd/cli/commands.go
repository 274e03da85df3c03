package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-wrapped/internal/app"
	"github.com/dvloznov/finance-wrapped/internal/config"
	"github.com/dvloznov/finance-wrapped/internal/domain"
	"github.com/dvloznov/finance-wrapped/internal/gcs"
	"github.com/dvloznov/finance-wrapped/internal/logger"
	"github.com/dvloznov/finance-wrapped/internal/notionsync"
	"github.com/dvloznov/finance-wrapped/internal/source"
)

// sourceFlags selects the transactions a command works on.
type sourceFlags struct {
	input  string
	userID int
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.input, "input", "", "CSV export to read (local path or gs://bucket/object)")
	cmd.Flags().IntVar(&f.userID, "user", 0, "Demo user id (1-8) or BigQuery user_id")
	cmd.MarkFlagsMutuallyExclusive("input", "user")
}

// resolve picks the source and a human label for it. Without flags the
// configured default source is used.
func (f *sourceFlags) resolve(a *app.App, cfg *config.Config) (source.TransactionSource, string, error) {
	switch {
	case f.input != "":
		src, err := a.SourceForPath(f.input)
		return src, filepath.Base(f.input), err
	case f.userID > 0:
		src, err := a.SourceForUser(f.userID)
		return src, "user " + strconv.Itoa(f.userID), err
	}

	src, err := a.Default()
	if err != nil {
		return nil, "", err
	}
	if src == nil {
		return nil, "", errors.New("no transactions to read: pass --input or --user, or set source.path")
	}
	if cfg.Source.Kind == config.SourceBigQuery {
		return src, cfg.BigQuery.Table, nil
	}
	return src, filepath.Base(cfg.Source.Path), nil
}

// setup loads and validates configuration, configures logging on stderr and
// builds the application. A gs:// input becomes the source path so the
// storage client is created.
func setup(cmd *cobra.Command, input string) (context.Context, *app.App, *config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if strings.HasPrefix(input, "gs://") {
		cfg.Source.Path = input
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	opts := cfg.LoggerOptions()
	opts.Out = cmd.ErrOrStderr()
	log, err := logger.Configure(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx := logger.WithContext(cmd.Context(), log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return ctx, a, cfg, nil
}

func fetch(ctx context.Context, src source.TransactionSource) ([]*domain.Transaction, error) {
	txs, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Int("transactions", len(txs)).Msg("Loaded transactions")
	return txs, nil
}

func newAnalyzeCmd() *cobra.Command {
	var (
		src     sourceFlags
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full analysis and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cfg, err := setup(cmd, src.input)
			if err != nil {
				return err
			}
			defer a.Close()

			s, _, err := src.resolve(a, cfg)
			if err != nil {
				return err
			}
			txs, err := fetch(ctx, s)
			if err != nil {
				return err
			}
			result, err := a.Pipeline.Run(ctx, txs)
			if err != nil {
				return err
			}

			if summary {
				writeSummary(cmd.OutOrStdout(), result)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	src.register(cmd)
	cmd.Flags().BoolVar(&summary, "summary", false, "Print a short text summary instead of JSON")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	var src sourceFlags
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify transactions without aggregating them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cfg, err := setup(cmd, src.input)
			if err != nil {
				return err
			}
			defer a.Close()

			s, _, err := src.resolve(a, cfg)
			if err != nil {
				return err
			}
			txs, err := fetch(ctx, s)
			if err != nil {
				return err
			}
			report, err := a.Pipeline.Classify(ctx, txs)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"transactions": txs,
				"count":        len(txs),
				"report":       report,
			})
		},
	}
	src.register(cmd)
	return cmd
}

func newPublishCmd() *cobra.Command {
	var (
		src     sourceFlags
		subject string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Run the analysis and publish it to the Notion results database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cfg, err := setup(cmd, src.input)
			if err != nil {
				return err
			}
			defer a.Close()

			// Fail before spending oracle calls.
			if err := cfg.Notion.Require(); err != nil {
				return err
			}

			s, label, err := src.resolve(a, cfg)
			if err != nil {
				return err
			}
			if subject == "" {
				subject = label
			}
			txs, err := fetch(ctx, s)
			if err != nil {
				return err
			}
			result, err := a.Pipeline.Run(ctx, txs)
			if err != nil {
				return err
			}

			publisher := notionsync.NewPublisher(notionsync.NewNotionClient(cfg.Notion.Token), cfg.Notion.DatabaseID)
			outcome, err := publisher.PublishResult(ctx, subject, result, dryRun)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), outcome)
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&subject, "subject", "", "Page title (defaults to the input file name or user id)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Look up the page but do not write to Notion")
	return cmd
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file> <gs://bucket/object>",
		Short: "Upload a local CSV export to Cloud Storage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := gcs.ParseURI(args[1]); err != nil {
				return err
			}
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := gcs.NewClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := gcs.UploadFile(ctx, client, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newPersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the financial persona archetypes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), domain.DefaultPersonas().All())
		},
	}
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the spending categories and their hints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type category struct {
				Name       string `json:"name"`
				Hint       string `json:"hint"`
				Experience bool   `json:"experience"`
			}
			tax := domain.DefaultTaxonomy()
			var out []category
			for _, d := range tax.Categories() {
				out = append(out, category{Name: d.Name, Hint: d.Hint, Experience: tax.IsExperience(d.Name)})
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeSummary prints the highlights of a result for a terminal.
func writeSummary(w io.Writer, r *domain.AnalyticsResult) {
	fmt.Fprintf(w, "Persona: %s\n", r.FinancialPersonality)
	fmt.Fprintf(w, "Transactions: %s analyzed", humanize.Comma(int64(r.TransactionCount)))
	if r.DroppedCount > 0 {
		fmt.Fprintf(w, ", %s dropped", humanize.Comma(int64(r.DroppedCount)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Experiences %d%% / Essentials %d%%\n", r.SpendingBreakdown.ExperiencesPct, r.SpendingBreakdown.EssentialsPct)

	names := make([]string, 0, len(r.Categories))
	for name := range r.Categories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := r.Categories[names[i]].Percentage, r.Categories[names[j]].Percentage
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	fmt.Fprintln(w, "Categories:")
	for _, name := range names {
		s := r.Categories[name]
		fmt.Fprintf(w, "  %-18s %3d%%  %s txns, avg %s\n", name, s.Percentage, humanize.Comma(int64(s.Count)), humanize.Comma(s.AverageAmount))
	}

	if len(r.TopMerchants) > 0 {
		fmt.Fprintln(w, "Top merchants:")
		for i, m := range r.TopMerchants {
			fmt.Fprintf(w, "  %s %s (%s, %d visits)\n", humanize.Ordinal(i+1), m.Name, m.Category, m.VisitCount)
		}
	}
	if len(r.PeakMonths) > 0 {
		fmt.Fprintf(w, "Peak months: %s\n", strings.Join(r.PeakMonths, ", "))
	}
	for _, p := range r.ConversationPoints {
		fmt.Fprintf(w, "- %s\n", p)
	}
	if r.Narrative != "" {
		fmt.Fprintf(w, "\n%s\n", r.Narrative)
	}
}
