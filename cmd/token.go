package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"retrolock/internal/service"
)

const tokenFileMode = 0o600

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the shared bearer secret.",
	}

	var (
		out  string
		hash bool
	)
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create a random bearer secret.",
		Long: `Prints a new random secret to stdout.

With --out the secret is also written to FILE (mode 0600). With --hash the file
receives the bcrypt hash instead, so the server never stores the plain secret.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if hash && out == "" {
				return errors.New("--hash requires --out")
			}
			token, err := service.GenerateToken()
			if err != nil {
				return err
			}
			if out != "" {
				stored := token
				if hash {
					if stored, err = service.HashToken(token); err != nil {
						return err
					}
				}
				if err := os.WriteFile(filepath.Clean(out), []byte(stored+"\n"), tokenFileMode); err != nil {
					return fmt.Errorf("write token file: %w", err)
				}
			}
			_, _ = fmt.Fprintln(c.OutOrStdout(), token)
			return nil
		},
	}
	generate.Flags().StringVarP(&out, "out", "o", "", "write the secret to this file")
	generate.Flags().BoolVar(&hash, "hash", false, "store the bcrypt hash instead of the secret")

	tokenCmd.AddCommand(generate)
	return tokenCmd
}
