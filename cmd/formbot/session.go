package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/formbot/internal/cli"
	"github.com/aretw0/formbot/internal/config"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored user records",
	Long:  `List, inspect, and remove the per-user records (identity and form sessions) in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List users with a stored record",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		users, err := app.Bot.Users(cmd.Context())
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(users) == 0 {
			fmt.Fprintln(out, "No records found.")
			return nil
		}

		fmt.Fprintln(out, "Records:")
		for _, id := range users {
			rec, err := app.Bot.Record(cmd.Context(), id)
			if err != nil {
				fmt.Fprintf(out, "- %s (unreadable: %v)\n", id, err)
				continue
			}
			status := "idle"
			if s := rec.ActiveSession(); s != nil {
				status = fmt.Sprintf("%s on %s, question %d", s.ID, s.FormID, s.CurrentField+1)
			}
			fmt.Fprintf(out, "- %s: %d sessions, %s\n", id, len(rec.Sessions), status)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <user-id>",
	Short: "Print a user's record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		rec, err := app.Bot.Record(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load record '%s': %w", args[0], err)
		}
		// Credential hashes never leave the store.
		if rec.CredentialHash != "" {
			rec.CredentialHash = "<set>"
		}

		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <user-id>...",
	Short: "Remove one or more user records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		var errs []error
		for _, id := range args {
			if err := app.Bot.DeleteUser(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("remove '%s': %w", id, err))
				continue
			}
			fmt.Fprintf(out, "Removed record '%s'\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}

// openApp wires a bot for one-shot administrative commands.
func openApp(cmd *cobra.Command) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cli.NewLogger(cfg)
	if cfg.Storage.Backend == config.StoreMemory {
		logger.Warn("The memory store is empty at start; set FORMBOT_STORE to inspect persisted records")
	}
	return cli.NewApp(cmd.Context(), cfg, logger)
}
