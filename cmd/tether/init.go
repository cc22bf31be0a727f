package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tether/internal/config"
	"github.com/vango-dev/tether/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		asJSON bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default config file",
		Long: `Write tether.yaml (or tether.json with --json) with every setting at
its default value.

Examples:
  tether init
  tether init ./deploy --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := runInit(dir, asJSON, force)
			if err != nil {
				return err
			}
			success("Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Write tether.json instead of tether.yaml")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func runInit(dir string, asJSON, force bool) (string, error) {
	name := config.DefaultFileName
	if asJSON {
		name = config.JSONFileName
	}
	path := filepath.Join(dir, name)

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", errors.New("T401").
				WithDetailf("%s already exists", path).
				WithSuggestion("Pass --force to overwrite it")
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	if err := config.New().SaveTo(path); err != nil {
		return "", err
	}
	return path, nil
}
