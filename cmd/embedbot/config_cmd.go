package main

import (
	"encoding/json"
	"fmt"
	"io"

	"embedbot/internal/config"

	"github.com/spf13/cobra"
)

// onConfig adapts fn into a RunE that first loads the config file. Unlike
// loadConfig it never falls back to defaults: these commands edit the file.
func onConfig(fn func(cmd *cobra.Command, path string, cfg *config.Config, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		path := resolveConfigPath()
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return fn(cmd, path, cfg, args)
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit config.json",
		Long:  "Read and write config values by dot path. Tokens are masked on output.",
	}

	get := &cobra.Command{
		Use:     "get <path>",
		Short:   "Print one value, e.g. channels.discord.shardCount",
		Args:    cobra.ExactArgs(1),
		Example: "  embedbot config get channels.telegram.limits",
		RunE: onConfig(func(cmd *cobra.Command, _ string, cfg *config.Config, args []string) error {
			v, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		}),
	}

	set := &cobra.Command{
		Use:     "set <path> <value>",
		Short:   "Change one value and save the file if it still validates",
		Args:    cobra.ExactArgs(2),
		Example: "  embedbot config set channels.discord.limits.maxEmbedsPerMessage 10",
		RunE: onConfig(func(_ *cobra.Command, path string, cfg *config.Config, args []string) error {
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("not saved: %w", err)
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			logger.Info("config updated", "key", args[0], "file", path)
			return nil
		}),
	}

	var flat bool
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the whole config",
		RunE: onConfig(func(cmd *cobra.Command, _ string, cfg *config.Config, _ []string) error {
			safe := config.Sanitize(cfg)
			if !flat {
				return printJSON(cmd.OutOrStdout(), safe)
			}
			paths := config.ListPaths(safe)
			for _, key := range config.SortedPaths(paths) {
				v, _ := json.Marshal(paths[key])
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, v)
			}
			return nil
		}),
	}
	list.Flags().BoolVar(&flat, "flat", false, "print one path = value per line")

	where := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath())
		},
	}

	cmd.AddCommand(get, set, list, where)
	return cmd
}
