package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/acolita/termdriver/internal/config"
	"github.com/acolita/termdriver/internal/secrets"
)

var secretOpts struct {
	variant     string
	separator   string
	entries     []string
	keys        []string
	doNotDelete bool
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Create, read, update and delete stored secrets",
}

func newSecretWriteCmd(use, short string, write func(*secrets.SDK, secrets.Parameters) (map[string]string, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " KEY=VALUE...",
		Short: short,
		Long:  short + ". Values are parsed as YAML, so numbers, lists and maps are stored as JSON.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := parseEntries(args)
			if err != nil {
				return err
			}
			p := secretParameters(cfg.Secrets)
			p.Entries = entries
			stored, err := write(secretsSDK(cfg.Secrets), p)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(stored))
			for k := range stored {
				keys = append(keys, p.StoredKey(k))
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"stored": keys})
		},
	}
	return cmd
}

var secretsReadCmd = &cobra.Command{
	Use:   "read KEY...",
	Short: "Read secrets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := secretParameters(cfg.Secrets)
		p.Keys = args
		values, err := secretsSDK(cfg.Secrets).Read(p)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), values)
	},
}

var secretsDeleteCmd = &cobra.Command{
	Use:   "delete KEY...",
	Short: "Delete secrets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := secretParameters(cfg.Secrets)
		p.DoNotDelete = secretOpts.doNotDelete
		return secretsSDK(cfg.Secrets).Delete(p, args)
	},
}

func init() {
	secretsCmd.PersistentFlags().StringVar(&secretOpts.variant, "variant", "", "namespace prefixed to every key")
	secretsCmd.PersistentFlags().StringVar(&secretOpts.separator, "separator", "", "separator between variant and key")
	secretsDeleteCmd.Flags().BoolVar(&secretOpts.doNotDelete, "do-not-delete", false, "keep the secrets and only log the request")

	secretsCmd.AddCommand(
		newSecretWriteCmd("create", "Store new secrets", (*secrets.SDK).Create),
		newSecretWriteCmd("update", "Overwrite existing secrets", (*secrets.SDK).Update),
		secretsReadCmd,
		secretsDeleteCmd,
	)
	rootCmd.AddCommand(secretsCmd)
}

func secretParameters(c config.SecretsConfig) secrets.Parameters {
	p := secrets.Parameters{Variant: secretOpts.variant, Separator: secretOpts.separator}
	if p.Separator == "" {
		p.Separator = c.Separator
	}
	return p
}

func secretsSDK(c config.SecretsConfig) *secrets.SDK {
	if strings.EqualFold(c.Backend, "memory") {
		return secrets.NewSDK(secrets.NewMemoryBackend())
	}
	return secrets.NewSDK(secrets.NewKeyringBackend(c.Service))
}

// parseEntries splits KEY=VALUE arguments. Values are YAML scalars or
// documents; anything that fails to parse is kept as a string.
func parseEntries(args []string) (map[string]any, error) {
	entries := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("entry %q: want KEY=VALUE", arg)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		entries[key] = v
	}
	return entries, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
