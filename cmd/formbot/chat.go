package main

import (
	"github.com/aretw0/formbot/internal/cli"
	"github.com/aretw0/formbot/internal/presentation/tui"
	"github.com/aretw0/formbot/pkg/runner"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot in the terminal",
	Long: `Runs a console conversation. Lines are answers while a form is active and free chat otherwise.
Type /help for the console commands.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("user", runner.DefaultUserID, "User id to speak as")
	chatCmd.Flags().String("form", "", "Start this form immediately (empty with the flag set starts the default form)")
	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	chatCmd.Flags().Bool("plain", false, "Disable markdown rendering")
	chatCmd.Flags().Bool("no-banner", false, "Do not print the banner")
	chatCmd.Flags().Bool("exit-on-complete", false, "Exit once the started form is completed or cancelled")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	userID, _ := cmd.Flags().GetString("user")
	jsonMode, _ := cmd.Flags().GetBool("json")
	plain, _ := cmd.Flags().GetBool("plain")
	noBanner, _ := cmd.Flags().GetBool("no-banner")
	exitOnComplete, _ := cmd.Flags().GetBool("exit-on-complete")

	// The runner handles Ctrl+C itself: it interrupts the turn in flight and
	// exits only when idle.
	ctx := cmd.Context()
	logger := cli.NewLogger(cfg)
	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if !jsonMode && !noBanner {
		tui.PrintBanner(cmd.OutOrStdout())
	}

	opts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithUserID(userID),
		runner.WithExitOnComplete(exitOnComplete),
		runner.WithInputHandler(cli.NewConsoleHandler(cli.ConsoleOptions{
			JSON:      jsonMode,
			Plain:     plain,
			Stdin:     cmd.InOrStdin(),
			Sanitizer: cli.InputSanitizer(cfg),
		})),
	}
	if cmd.Flags().Changed("form") {
		formID, _ := cmd.Flags().GetString("form")
		opts = append(opts, runner.WithForm(formID))
	}

	return cli.HandleExecutionError(runner.NewRunner(app.Bot, opts...).Run(ctx))
}
