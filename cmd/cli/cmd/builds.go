package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/onewithdev/peterbot-sandbox/pkg/buildlog"
)

var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "Inspect build history",
}

var listBuildsCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent builds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		builds, err := newClient().ListBuilds(ctx)
		if err != nil {
			return fmt.Errorf("failed to list builds: %w", err)
		}

		if len(builds) == 0 {
			fmt.Println("No builds found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BUILD\tTEMPLATE\tTAG\tSTATUS\tSTARTED\tDURATION")
		for _, b := range builds {
			duration := ""
			if !b.FinishedAt.IsZero() {
				duration = b.FinishedAt.Sub(b.StartedAt).Round(time.Second).String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				b.ID, b.Name, b.Tag, b.Status, b.StartedAt.Format("2006-01-02 15:04:05"), duration)
		}
		w.Flush()

		return nil
	},
}

var getBuildCmd = &cobra.Command{
	Use:   "get <build-id>",
	Short: "Show a build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		build, err := newClient().GetBuild(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get build: %w", err)
		}

		data, _ := json.MarshalIndent(build, "", "  ")
		fmt.Println(string(data))
		return nil
	},
}

var buildLogsCmd = &cobra.Command{
	Use:   "logs <build-id>",
	Short: "Print a build's log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		c := newClient()

		if follow {
			// Live tail; falls back to the stored result when the build
			// has already finished.
			return c.WatchBuild(context.Background(), args[0], buildlog.Default())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logText, err := c.GetBuildLogs(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get build logs: %w", err)
		}
		fmt.Print(logText)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildsCmd)
	buildsCmd.AddCommand(listBuildsCmd)
	buildsCmd.AddCommand(getBuildCmd)
	buildsCmd.AddCommand(buildLogsCmd)

	buildLogsCmd.Flags().Bool("follow", false, "Follow a running build's log")
}
