package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"httpcron/internal/config"
	logx "httpcron/pkg/logx"
)

func newCheckCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config and print the parsed jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewManager(cfgPath).Load()
			if err != nil {
				return err
			}
			// Unsupported units and other degradations are reported on stderr.
			return renderJobs(cmd.OutOrStdout(), cfg, logx.NewConsole("warn"))
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "path to config (json or yaml)")
	return cmd
}

// errUnschedulable is returned when a valid config contains jobs that would
// never fire.
var errUnschedulable = errors.New("config has jobs that will not be scheduled")

func renderJobs(w io.Writer, cfg *config.Config, log logx.Logger) error {
	tasks, err := config.BuildTasks(cfg, log)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "URL", "Schedule", "Period", "Timeout", "Description"})

	zero := 0
	for _, name := range names {
		task := tasks[name]
		period := task.Period().String()
		if task.Period() <= 0 {
			period = "zero (not scheduled)"
			zero++
		}
		timeout := task.Timeout().String()
		if task.Timeout() <= 0 {
			timeout = "none"
		}
		t.AppendRow(table.Row{name, task.URL(), task.Schedule(), period, timeout, task.Description()})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Jobs", len(names)})
	t.Render()

	if zero > 0 {
		return fmt.Errorf("%w: %d", errUnschedulable, zero)
	}
	return nil
}
