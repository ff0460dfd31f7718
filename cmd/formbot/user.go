package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/formbot/internal/presentation/tui"
	"github.com/aretw0/formbot/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Register users and check their credentials",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register <user-id>",
	Short: "Register a user with a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		secret, err := readSecret(cmd)
		if err != nil {
			return err
		}

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Bot.Register(cmd.Context(), args[0], name, secret); err != nil {
			return fmt.Errorf("%s: %w", domain.UserMessage(err), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered '%s'\n", args[0])
		return nil
	},
}

var userAuthCmd = &cobra.Command{
	Use:   "auth <user-id>",
	Short: "Check a user's secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := readSecret(cmd)
		if err != nil {
			return err
		}

		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ok, err := app.Bot.Authenticate(cmd.Context(), args[0], secret)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("authentication failed")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Authenticated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userRegisterCmd)
	userCmd.AddCommand(userAuthCmd)

	userCmd.PersistentFlags().String("secret", "", "Secret to use (prompted for when omitted)")
	userRegisterCmd.Flags().String("name", "", "Display name")
}

// readSecret takes --secret, prompts without echo on a terminal, or reads one line of stdin.
func readSecret(cmd *cobra.Command) (string, error) {
	if secret, _ := cmd.Flags().GetString("secret"); secret != "" {
		return secret, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && tui.IsTerminal(f) {
		fmt.Fprint(cmd.ErrOrStderr(), "Secret: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("a secret is required")
	}
	return secret, nil
}
