package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wolffm/dispatch/internal/poll"
	"github.com/wolffm/dispatch/internal/watch"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously poll upstream submissions",
	Long: `Run the submission poller on an interval until interrupted. A PID
file in the state directory keeps a second loop from racing the first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun(cmd)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", watch.DefaultInterval, "Time between polling passes")
	rootCmd.AddCommand(watchCmd)
}

func watchRun(cmd *cobra.Command) error {
	engine, err := getPoller()
	if err != nil {
		return err
	}

	stateDir := viper.GetString("state_dir")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	pf := watch.NewPIDFile(filepath.Join(stateDir, "watch.pid"))
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	loop := watch.New(engine, watchInterval)
	loop.OnPass = func(s *poll.Summary) {
		ui.Info("Polled %d PRs (merged %d, closed %d, feedback %d, failed %d)",
			s.Polled, s.Merged, s.Closed, s.Feedback, s.Failed)
	}
	loop.OnError = func(err error) {
		ui.Warning("Polling pass failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.Info("Watching submissions every %s (Ctrl-C to stop)", watchInterval)
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	ui.Info("Watch loop stopped")
	return nil
}
