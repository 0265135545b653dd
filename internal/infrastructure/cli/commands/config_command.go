package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/vocmd/internal/app"
	configapp "github.com/doeshing/vocmd/internal/application/config"
	"github.com/doeshing/vocmd/internal/domain"
	configinfra "github.com/doeshing/vocmd/internal/infrastructure/config"
)

// NewConfigCommand creates the config command with all subcommands
func NewConfigCommand(container *app.Container) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect vocmd configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}

	configCmd.AddCommand(
		newConfigShowCommand(container),
		newConfigPathCommand(container),
		newConfigValidateCommand(container),
		newConfigDiffCommand(container),
		newConfigHandlerCommand(container),
		newConfigCategoryCommand(container),
	)
	return configCmd
}

func newConfigShowCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show full configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

func newConfigPathCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := configLoader(container)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), loader.Path())
			return nil
		},
	}
}

func newConfigValidateCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(cmd.Context(), container)
			if err != nil {
				return err
			}
			if err := configapp.Validate(cfg); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgConfigurationValid)
			return nil
		},
	}
}

func newConfigDiffCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show diff versus default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(cmd.Context(), container)
			if err != nil {
				return err
			}
			defaults, err := configinfra.Defaults()
			if err != nil {
				return err
			}
			diff := cmp.Diff(defaults, cfg)
			if diff == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No differences from default configuration.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), diff)
			return nil
		},
	}
}

func newConfigHandlerCommand(container *app.Container) *cobra.Command {
	handlerCmd := &cobra.Command{
		Use:   "handler",
		Short: "Bind handler keys to shell command templates",
	}

	handlerCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <command template>",
		Short: "Bind a handler key, e.g. media.play 'playerctl play'",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfiguration(cmd.Context(), container, func(cfg *domain.Config) {
				cfg.SetHandlerCommand(args[0], strings.Join(args[1:], " "))
			})
		},
	}, &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a handler binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfiguration(cmd.Context(), container, func(cfg *domain.Config) {
				delete(cfg.Execution.Handlers, args[0])
			})
		},
	})
	return handlerCmd
}

func newConfigCategoryCommand(container *app.Container) *cobra.Command {
	categoryCmd := &cobra.Command{
		Use:   "category",
		Short: "Enable or disable command categories",
	}

	toggle := func(use, short string, apply func(*domain.Config, domain.Category)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <category>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cat := domain.Category(strings.ToLower(args[0]))
				if !cat.Valid() {
					return fmt.Errorf("unknown category %q", args[0])
				}
				return updateConfiguration(cmd.Context(), container, func(cfg *domain.Config) {
					apply(cfg, cat)
				})
			},
		}
	}

	categoryCmd.AddCommand(
		toggle("enable", "Enable a command category", (*domain.Config).EnableCategory),
		toggle("disable", "Disable a command category", (*domain.Config).DisableCategory),
	)
	return categoryCmd
}

func showConfiguration(ctx context.Context, out io.Writer, container *app.Container) error {
	cfg, err := loadConfiguration(ctx, container)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// updateConfiguration loads, mutates, validates and saves the config file.
func updateConfiguration(ctx context.Context, container *app.Container, mutate func(*domain.Config)) error {
	loader, err := configLoader(container)
	if err != nil {
		return err
	}
	cfg, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	mutate(&cfg)
	if err := configapp.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

func loadConfiguration(ctx context.Context, container *app.Container) (domain.Config, error) {
	loader, err := configLoader(container)
	if err != nil {
		return domain.Config{}, err
	}
	cfg, err := loader.Load(ctx)
	if err != nil {
		return domain.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func configLoader(container *app.Container) (*configinfra.FileLoader, error) {
	if container.ConfigLoader == nil {
		return nil, errors.New(ErrConfigLoaderUnavailable)
	}
	return container.ConfigLoader, nil
}
