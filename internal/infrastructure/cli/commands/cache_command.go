package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/vocmd/internal/app"
	"github.com/doeshing/vocmd/internal/infrastructure/cache"
)

// NewCacheCommand creates the cache command with all subcommands
func NewCacheCommand(container *app.Container) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the suggestion cache",
	}

	cacheCmd.AddCommand(
		newCacheClearCommand(container),
		newCacheSizeCommand(container),
	)
	return cacheCmd
}

func newCacheClearCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached suggestion list",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := suggestionCache(container)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Suggestion cache cleared.")
			return nil
		},
	}
}

func newCacheSizeCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Show cache location, entry count and disk usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := suggestionCache(container)
			if err != nil {
				return err
			}
			size, err := directorySize(store.Dir())
			if err != nil {
				return fmt.Errorf("failed to calculate cache size: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache directory: %s\nEntries: %d\nSize: %s\n",
				store.Dir(), store.Len(), humanize.Bytes(uint64(size)))
			return nil
		},
	}
}

func suggestionCache(container *app.Container) (*cache.FileCache, error) {
	if container.SuggestCache == nil {
		return nil, errors.New(ErrCacheStoreUnavailable)
	}
	return container.SuggestCache, nil
}

func directorySize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
