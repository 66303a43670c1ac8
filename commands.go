package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/HughODwyer90/hugh.casa/report"
	"github.com/HughODwyer90/hugh.casa/z2m"
)

var errItemsFailed = errors.New("one or more items failed")

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot entities and integrations and mirror the configuration to GitHub",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		job, err := e.backupJob()
		if err != nil {
			return err
		}
		log := report.New("backup")
		if err := job.Run(cmd.Context(), log); err != nil {
			glog.Errorf("backup finished with errors: %s", err)
		}
		return finish(cmd, log)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Write the update entities of zigbee2mqtt devices with a pending OTA update to the update list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		ids, err := z2m.Extract(e.fs, e.conf.Update.Z2MLogDir)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			glog.Warning("no update entities found in log")
		}
		if err := z2m.WriteList(e.fs, e.conf.Update.ListFile, ids); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "written %d entries to %s\n", len(ids), e.conf.Update.ListFile)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [entity_id...]",
	Short: "Install pending updates one device at a time",
	Long: "Install pending updates one device at a time. Without arguments the entities " +
		"are read from the update list written by extract.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		ids := args
		if len(ids) == 0 {
			if ids, err = z2m.ReadList(e.fs, e.conf.Update.ListFile); err != nil {
				return err
			}
		}
		p, err := e.poller()
		if err != nil {
			return err
		}
		log := report.New("update")
		for _, r := range p.Run(cmd.Context(), ids) {
			log.Update(r)
		}
		return finish(cmd, log)
	},
}

var uploadMessage string

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> <repo-path>",
	Short: "Mirror one file to GitHub",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		sync, err := e.contentSync()
		if err != nil {
			return err
		}
		log := report.New("upload")
		log.Upload(sync.UploadFile(cmd.Context(), e.fs, args[0], args[1], uploadMessage))
		return finish(cmd, log)
	},
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadMessage, "message", "m", "", "Commit message (default \"Update <file name>\").")
	rootCmd.AddCommand(backupCmd, extractCmd, updateCmd, uploadCmd, serveCmd)
}

var outcomeColors = map[report.Outcome]*color.Color{
	report.OutcomeSucceeded: color.New(color.FgGreen),
	report.OutcomeSkipped:   color.New(color.FgYellow),
	report.OutcomeFailed:    color.New(color.FgRed, color.Bold),
	report.OutcomeTimedOut:  color.New(color.FgRed),
}

func printReport(w io.Writer, log *report.Log) error {
	for _, e := range log.Entries() {
		outcome := fmt.Sprintf("%-9s", e.Outcome)
		if c, ok := outcomeColors[e.Outcome]; ok {
			outcome = c.Sprint(outcome)
		}
		line := fmt.Sprintf("%s %-6s %s %s", e.Time.Format(time.DateTime), e.Kind, outcome, e.Subject)
		if e.Attempts > 1 {
			line += fmt.Sprintf(" (%d attempts)", e.Attempts)
		}
		if e.Detail != "" {
			line += ": " + color.HiBlackString(e.Detail)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, log.Tally())
	return err
}

// finish prints the run report and turns item failures into a non-zero exit.
func finish(cmd *cobra.Command, log *report.Log) error {
	log.Finish()
	if err := printReport(cmd.OutOrStdout(), log); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if log.Failed() {
		return errItemsFailed
	}
	return nil
}
