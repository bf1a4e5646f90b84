package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/blackfroglabs/shopdesk/internal/api"
	"github.com/blackfroglabs/shopdesk/internal/config"
)

func newLoginCmd() *cobra.Command {
	var (
		configPath string
		email      string
		envPath    string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the API token",
		Long:  "Exchanges operator credentials for a bearer token and writes it to the .env file used by the other commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, configPath, email, envPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopdesk.yaml", "path to shopdesk config file")
	cmd.Flags().StringVar(&email, "email", "", "operator email (prompted if omitted)")
	cmd.Flags().StringVar(&envPath, "env-file", ".env", "file the token is written to")
	return cmd
}

func runLogin(cmd *cobra.Command, configPath, email, envPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	client := api.New(cfg.API.BaseURL)

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	if email == "" {
		fmt.Fprint(out, "Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return fmt.Errorf("email is required")
	}

	password, err := readPassword(out, reader)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	resp, err := client.Login(context.Background(), &api.LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := writeToken(envPath, resp.Token); err != nil {
		return err
	}

	fmt.Fprintf(out, "Logged in as %s; token written to %s\n", email, envPath)
	if resp.ExpiresAt != "" {
		fmt.Fprintf(out, "Token expires at %s\n", resp.ExpiresAt)
	}
	return nil
}

// readPassword reads a password without echo when stdin is a terminal,
// falling back to a plain line read otherwise.
func readPassword(out io.Writer, reader *bufio.Reader) (string, error) {
	fmt.Fprint(out, "Password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// writeToken stores the token in the env file, preserving other entries.
func writeToken(envPath, token string) error {
	env, err := godotenv.Read(envPath)
	if err != nil {
		env = map[string]string{}
	}
	env[config.TokenEnvVar] = token
	if err := godotenv.Write(env, envPath); err != nil {
		return fmt.Errorf("write %s: %w", envPath, err)
	}
	return nil
}
