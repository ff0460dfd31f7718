package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/formbot/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "formbot",
	Short: "formbot collects conversational forms over Discord, HTTP and the terminal",
	Long: `formbot asks users one question at a time, validates each answer (optionally with an LLM),
and relays free chat to the configured text-generation service.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.String("env-file", "", "Load environment variables from this file instead of .env")
	pf.String("log-level", "", "Log level: debug, info, warn or error (overrides FORMBOT_LOG_LEVEL)")
	pf.String("log-format", "", "Log format: text or json (overrides FORMBOT_LOG_FORMAT)")
	pf.String("store", "", "State store: memory, file, sqlite or redis (overrides FORMBOT_STORE)")
	pf.String("forms", "", "YAML or JSON file with extra forms (overrides FORMBOT_FORMS)")
}

// loadConfig reads the env file and environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var files []string
	if f, _ := cmd.Flags().GetString("env-file"); f != "" {
		files = append(files, f)
	}
	if err := config.LoadDotEnv(files...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
		"store":      &cfg.Storage.Backend,
		"forms":      &cfg.Forms.Path,
	}
	for name, dst := range overrides {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
