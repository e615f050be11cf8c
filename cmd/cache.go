package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the response cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cacheStatsRun()
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts and TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cacheStatsRun()
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cacheClearRun()
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func cacheStatsRun() error {
	stats := getCache().Stat()

	if !stats.Enabled {
		ui.Warning("Cache is disabled (cache.disabled = true)")
		return nil
	}

	table := ui.Table([]string{"Field", "Value"})
	_ = table.Append([]string{"TTL", stats.TTL.String()})
	_ = table.Append([]string{"Entries", strconv.Itoa(stats.Entries)})
	_ = table.Append([]string{"Valid", strconv.Itoa(stats.Valid)})
	_ = table.Append([]string{"Expired", strconv.Itoa(stats.Expired)})
	_ = table.Render()
	return nil
}

func cacheClearRun() error {
	if dryRun {
		ui.DryRunMsg("Would clear the cache")
		return nil
	}

	n := getCache().InvalidateAll()
	ui.Success("Removed %d cached entries", n)
	return nil
}
