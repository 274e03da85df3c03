package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "wrapped",
	Short: "Year-in-review spending analytics over transaction exports",
	Long: `Wrapped classifies transactions with a language model, aggregates spending
metrics and assigns a financial persona. Transactions come from a local CSV
export, a gs:// object or BigQuery, as configured.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("WRAPPED_CONFIG"), "Path to a TOML config file (or set WRAPPED_CONFIG env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newClassifyCmd(),
		newPublishCmd(),
		newUploadCmd(),
		newPersonasCmd(),
		newCategoriesCmd(),
	)
}
