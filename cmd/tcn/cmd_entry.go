package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	entryStart string
	entryEnd   string
	entryBreak int
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Record or remove a day's hours",
}

var entrySaveCmd = &cobra.Command{
	Use:     "save <timesheet-id> <date>",
	Short:   "Save the hours worked on one day (YYYY-MM-DD)",
	Example: `  tcn entry save 6f1c... 2025-01-06 --start 08:30 --end 16:30 --break 30`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call(cmd.Context(), http.MethodPut, "/v1/timesheets/"+url.PathEscape(args[0])+"/entries",
			map[string]any{
				"date":         args[1],
				"startTime":    entryStart,
				"endTime":      entryEnd,
				"breakMinutes": entryBreak,
			})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ %s: %.2f h\n", args[1], resp.Entry.TotalHours)
		printTotals(out, *resp.Totals)
		return nil
	},
}

var entryDeleteCmd = &cobra.Command{
	Use:   "delete <entry-id> | <timesheet-id> <date>",
	Short: "Remove an entry by ID, or by timesheet and date",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/v1/entries/" + url.PathEscape(args[0])
		if len(args) == 2 {
			path = "/v1/timesheets/" + url.PathEscape(args[0]) + "/entries/" + url.PathEscape(args[1])
		}
		resp, err := call(cmd.Context(), http.MethodDelete, path, nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "✓ Entry removed")
		printTotals(out, *resp.Totals)
		return nil
	},
}

func init() {
	entrySaveCmd.Flags().StringVar(&entryStart, "start", "", "Start time (HH:MM)")
	entrySaveCmd.Flags().StringVar(&entryEnd, "end", "", "End time (HH:MM)")
	entrySaveCmd.Flags().IntVar(&entryBreak, "break", 0, "Unpaid break in minutes")

	entryCmd.AddCommand(entrySaveCmd, entryDeleteCmd)
}
