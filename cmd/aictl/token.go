package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	httpserver "github.com/fairyhunter13/confms-ai-service/internal/adapter/httpserver"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Service token helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash",
		Short: "Read a token on stdin and print its SERVICE_TOKEN_HASH value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			token := strings.TrimSpace(line)
			if token == "" {
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				return fmt.Errorf("empty token")
			}
			hash, err := httpserver.HashToken(token, httpserver.DefaultArgon2Params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})
	return cmd
}
