package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	apiBaseURL string
	tokenPath  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "newslens",
	Short:         "Classify headlines for political bias and drive a NewsLens server",
	Long:          `newslens classifies text with the built-in keyword lexicon, runs one-off fetch cycles against the local database, and talks to a running API server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api", envOr("NEWSLENS_API", "http://localhost:5000"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&tokenPath, "token", defaultTokenPath(), "token file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")

	rootCmd.AddCommand(classifyCmd, compareCmd, fetchCmd, statsCmd, watchCmd)
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, feedCmd, schedulerCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
