package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/scc/internal/store"
)

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the compilation cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "stats",
		Short:        "Show entry count and total size",
		Args:         cobra.NoArgs,
		RunE:         runCacheStats,
		SilenceUsage: true,
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "list",
		Short:        "List cache entries, most recently used first",
		Args:         cobra.NoArgs,
		RunE:         runCacheList,
		SilenceUsage: true,
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:          "clear",
		Short:        "Remove every cache entry",
		Args:         cobra.NoArgs,
		RunE:         runCacheClear,
		SilenceUsage: true,
	})

	return cacheCmd
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, err
	}

	return store.New(cfg.CacheDir)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}

	count, size, err := s.Stats()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache:   %s\n", s.Root())
	fmt.Fprintf(out, "Entries: %d\n", count)
	fmt.Fprintf(out, "Size:    %s\n", humanize.Bytes(uint64(size)))

	return nil
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}

	entries, err := s.Entries()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range entries {
		hash := e.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}

		fmt.Fprintf(out, "%s  %8s  %-16s  %s\n", hash, humanize.Bytes(uint64(e.Size)), humanize.Time(e.LastUsed), e.Description)
	}

	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}

	removed, err := s.Clear()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, plural(removed, "entry", "entries"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
