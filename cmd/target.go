package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wolffm/dispatch/internal/output"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage the watchlist of target repositories",
	Long:  "Add, remove, and list the upstream repositories mined for contributable issues.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return targetListRun(cmd)
	},
}

var targetListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List watchlist targets with repo metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		return targetListRun(cmd)
	},
}

var targetAddCmd = &cobra.Command{
	Use:   "add <owner> <repo>",
	Short: "Add a repository to the watchlist",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return targetAddRun(cmd, args[0], args[1])
	},
}

var targetRemoveCmd = &cobra.Command{
	Use:     "remove <owner> <repo>",
	Aliases: []string{"rm"},
	Short:   "Remove a repository from the watchlist",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return targetRemoveRun(cmd, args[0], args[1])
	},
}

var targetRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Drop stage caches and trigger an aggregator recompute",
	RunE: func(cmd *cobra.Command, args []string) error {
		return targetRefreshRun(cmd)
	},
}

func init() {
	targetCmd.AddCommand(targetListCmd)
	targetCmd.AddCommand(targetAddCmd)
	targetCmd.AddCommand(targetRemoveCmd)
	targetCmd.AddCommand(targetRefreshCmd)
	rootCmd.AddCommand(targetCmd)
}

func targetListRun(cmd *cobra.Command) error {
	p, err := getPipeline()
	if err != nil {
		return err
	}

	targets, err := p.Targets(cmd.Context())
	if err != nil {
		return err
	}

	if len(targets) == 0 {
		ui.Info("No targets. Use 'dispatch target add <owner> <repo>' to get started.")
		return nil
	}

	table := ui.Table([]string{"Slug", "Repo", "Stars", "Language", "Viability"})
	for _, t := range targets {
		stars, lang := "-", "-"
		if t.Meta != nil {
			stars = strconv.Itoa(t.Meta.Stars)
			lang = t.Meta.Language
		}
		viability := "-"
		if t.Health != nil {
			viability = strconv.Itoa(t.Health.OverallViability)
		}
		_ = table.Append([]string{
			output.Cyan(t.Slug),
			t.Owner + "/" + t.Repo,
			stars,
			lang,
			viability,
		})
	}
	_ = table.Render()
	return nil
}

func targetRefreshRun(cmd *cobra.Command) error {
	p, err := getPipeline()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would drop stage caches and trigger an aggregator refresh")
		return nil
	}

	if p.RefreshTargets(cmd.Context()) {
		ui.Success("Stage caches dropped, aggregator refresh triggered")
	} else {
		ui.Success("Stage caches dropped (no aggregator configured)")
	}
	return nil
}

func targetAddRun(cmd *cobra.Command, owner, repo string) error {
	p, err := getPipeline()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add %s/%s to the watchlist", owner, repo)
		return nil
	}

	entry, created, err := p.AddTarget(cmd.Context(), owner, repo)
	if err != nil {
		return fmt.Errorf("add target: %w", err)
	}
	if !created {
		ui.Warning("%s/%s is already on the watchlist (slug %s)", owner, repo, entry.Slug)
		return nil
	}

	ui.Success("Added %s/%s (slug %s)", owner, repo, entry.Slug)
	return nil
}

func targetRemoveRun(cmd *cobra.Command, owner, repo string) error {
	p, err := getPipeline()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove %s/%s from the watchlist", owner, repo)
		return nil
	}

	removed, err := p.RemoveTarget(cmd.Context(), owner, repo)
	if err != nil {
		return fmt.Errorf("remove target: %w", err)
	}
	if !removed {
		ui.Warning("%s/%s is not on the watchlist", owner, repo)
		return nil
	}

	ui.Success("Removed %s/%s", owner, repo)
	return nil
}
