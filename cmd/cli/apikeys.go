package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anstrom/alicorn/internal/auth"
)

var apiKeysCmd = &cobra.Command{
	Use:     "apikeys",
	Aliases: []string{"apikey", "keys"},
	Short:   "Generate and hash API keys for the API server",
	Long: `Generate and hash API keys accepted by the API server when
api.auth_enabled is set.

Entries in api.api_keys may be plaintext keys or bcrypt hashes printed by
"alicorn apikeys hash". Clients send the key itself in the X-API-Key header
or as a Bearer token.`,
}

var apiKeysGenerateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"new", "create"},
	Short:   "Generate a new API key and its hash",
	Long: `Generate a new random API key. The key is printed once together with
the bcrypt hash to put in api.api_keys.`,
	Example: `  alicorn apikeys generate`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		hash, err := auth.HashAPIKey(key)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Key:    %s\n", key)
		fmt.Fprintf(out, "Hash:   %s\n", hash)
		fmt.Fprintf(out, "Prefix: %s\n", auth.CreateDisplayPrefix(key))
		fmt.Fprintln(out, "\nThe key is not shown again. Add the hash to api.api_keys.")
		return nil
	},
}

var apiKeysHashCmd = &cobra.Command{
	Use:   "hash [key]",
	Short: "Print the bcrypt hash of an existing key",
	Long: `Print the bcrypt hash of an existing key. Without an argument the key
is read from the first line of standard input.`,
	Example: `  alicorn apikeys hash ak_3xq...
  echo "$ALICORN_KEY" | alicorn apikeys hash`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			var err error
			if key, err = readKey(cmd.InOrStdin()); err != nil {
				return err
			}
		}

		hash, err := auth.HashAPIKey(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apiKeysCmd)
	apiKeysCmd.AddCommand(apiKeysGenerateCmd, apiKeysHashCmd)
}

func readKey(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("no key given")
	}
	return key, nil
}
