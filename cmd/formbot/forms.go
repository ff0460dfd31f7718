package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/formbot/internal/cli"
	"github.com/aretw0/formbot/internal/presentation/graph"
	"github.com/aretw0/formbot/pkg/adapters/memory"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/aretw0/formbot/pkg/forms"
	"github.com/aretw0/formbot/pkg/runner"
	"github.com/spf13/cobra"
)

var formsCmd = &cobra.Command{
	Use:   "forms",
	Short: "Inspect form definitions",
}

var formsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the available forms",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		registry, err := forms.NewRegistry(cfg.Forms.Path)
		if err != nil {
			return err
		}
		list, err := registry.ListForms()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, f := range list {
			marker := " "
			if f.ID == cfg.Forms.DefaultForm {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\t%s (%d questions)\n", marker, f.ID, f.Name, len(f.Fields))
		}
		return nil
	},
}

var formsValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a forms file for consistency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := forms.LoadFile(args[0])
		if err == nil {
			// The loader rejects duplicate ids.
			_, err = memory.NewLoader(list...)
		}
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, f := range list {
			fmt.Fprintf(out, "  %s: %d fields\n", f.ID, len(f.Fields))
		}
		fmt.Fprintf(out, "%d forms are valid\n", len(list))
		return nil
	},
}

var formsGraphCmd = &cobra.Command{
	Use:   "graph <form-id>",
	Short: "Print a form as a Mermaid flowchart",
	Long:  `Renders the question flow of a form. With --user, the user's latest session on that form is highlighted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		form, err := app.Bot.Form(args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if userID, _ := cmd.Flags().GetString("user"); userID != "" {
			sessions, err := app.Bot.ListSessions(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("list sessions for '%s': %w", userID, err)
			}
			for i := len(sessions) - 1; i >= 0; i-- {
				if sessions[i].FormID == form.ID {
					overlay = graph.OverlayFor(form, sessions[i])
					break
				}
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(form, overlay))
		return nil
	},
}

var formsGenerateCmd = &cobra.Command{
	Use:   "generate <description>",
	Short: "Draft a form from a plain-language description",
	Long: `Asks the configured LLM for the questions of a new form and prints it as YAML.
Without a provider, or when the reply is unusable, a keyword template is used instead.
With --add the form is appended to the forms file (--forms or FORMBOT_FORMS).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		add, _ := cmd.Flags().GetBool("add")
		if name == "" {
			name = id
		}
		if add && cfg.Forms.Path == "" {
			return fmt.Errorf("--add needs a forms file (--forms or FORMBOT_FORMS)")
		}

		logger := cli.NewLogger(cfg)
		app, err := cli.NewApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		draft, err := app.Bot.GenerateForm(cmd.Context(), runner.DefaultUserID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		if draft.Source == domain.DraftTemplate {
			logger.Warn("Form drafted from the keyword template")
		}

		form := &domain.Form{ID: id, Name: name, Fields: draft.Fields}
		if err := app.Bot.AddForm(form); err != nil {
			return fmt.Errorf("generated form is not usable: %w", err)
		}

		if add {
			if err := forms.AppendFile(cfg.Forms.Path, form); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Added '%s' to %s\n", form.ID, cfg.Forms.Path)
		}
		data, err := forms.Marshal([]*domain.Form{form}, ".yaml")
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(formsCmd)
	formsCmd.AddCommand(formsLsCmd)
	formsCmd.AddCommand(formsValidateCmd)
	formsCmd.AddCommand(formsGraphCmd)
	formsCmd.AddCommand(formsGenerateCmd)

	formsGraphCmd.Flags().String("user", "", "Highlight this user's progress")

	formsGenerateCmd.Flags().String("id", "generated", "Id of the new form")
	formsGenerateCmd.Flags().String("name", "", "Display name (defaults to the id)")
	formsGenerateCmd.Flags().Bool("add", false, "Append the form to the forms file")
}
