package main

import (
	"errors"

	"github.com/aretw0/formbot/internal/cli"
	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run only the Discord relay",
	Long:  `Connects to the Discord gateway with DISCORD_TOKEN and serves commands, forms and free chat until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Discord.Token == "" {
			return errors.New("DISCORD_TOKEN is required")
		}

		logger := cli.NewLogger(cfg)
		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		app, err := cli.NewApp(sc, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		logger.Info("Starting Discord relay", "prefix", cfg.Discord.CommandPrefix, "store", cfg.Storage.Backend)
		return newRelay(app, cfg, logger).Run(sc, cfg.Discord.Token)
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}
