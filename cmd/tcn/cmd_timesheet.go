package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	listStatus     string
	listDepartment string
	actorID        string
	rejectReason   string
)

var timesheetCmd = &cobra.Command{
	Use:     "timesheet",
	Aliases: []string{"ts"},
	Short:   "View and move timesheets through approval",
}

var timesheetCurrentCmd = &cobra.Command{
	Use:   "current <user-id>",
	Short: "Show (creating if needed) the user's timesheet for this pay period",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call(cmd.Context(), http.MethodPost, "/v1/timesheets/current", map[string]string{"userId": args[0]})
		if err != nil {
			return err
		}
		printTimesheet(cmd.OutOrStdout(), resp.Timesheet)
		return nil
	},
}

var timesheetShowCmd = &cobra.Command{
	Use:   "show <timesheet-id>",
	Short: "Show a timesheet with its entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call(cmd.Context(), http.MethodGet, "/v1/timesheets/"+url.PathEscape(args[0]), nil)
		if err != nil {
			return err
		}
		printTimesheet(cmd.OutOrStdout(), resp.Timesheet)
		return nil
	},
}

var timesheetListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List one user's timesheets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/v1/users/" + url.PathEscape(args[0]) + "/timesheets"
		if listStatus != "" {
			path += "?" + url.Values{"status": {listStatus}}.Encode()
		}
		resp, err := call(cmd.Context(), http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		printTimesheetList(cmd.OutOrStdout(), resp.Timesheets)
		return nil
	},
}

var timesheetAllCmd = &cobra.Command{
	Use:   "all",
	Short: "List every user's timesheets (admin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if listStatus != "" {
			q.Set("status", listStatus)
		}
		if listDepartment != "" {
			q.Set("department", listDepartment)
		}
		path := "/v1/timesheets"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		resp, err := call(cmd.Context(), http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		printTimesheetList(cmd.OutOrStdout(), resp.Timesheets)
		return nil
	},
}

// transitionCmd builds the submit, approve, reject and revert commands.
func transitionCmd(use, short, action string, body func() map[string]string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <timesheet-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload map[string]string
			if body != nil {
				payload = body()
			}
			resp, err := call(cmd.Context(), http.MethodPost,
				"/v1/timesheets/"+url.PathEscape(args[0])+"/"+action, payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Timesheet %s is now %s\n", resp.Timesheet.ID, resp.Timesheet.Status)
			return nil
		},
	}
}

var (
	timesheetSubmitCmd  = transitionCmd("submit", "Submit a draft for approval", "submit", nil)
	timesheetApproveCmd = transitionCmd("approve", "Approve a submitted timesheet", "approve", func() map[string]string {
		return map[string]string{"approverId": actorID}
	})
	timesheetRejectCmd = transitionCmd("reject", "Reject a submitted timesheet", "reject", func() map[string]string {
		return map[string]string{"rejecterId": actorID, "reason": rejectReason}
	})
	timesheetRevertCmd = transitionCmd("revert", "Reopen a rejected timesheet as a draft", "revert", nil)
)

var timesheetDeleteCmd = &cobra.Command{
	Use:   "delete <timesheet-id>",
	Short: "Delete a draft timesheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := call(cmd.Context(), http.MethodDelete, "/v1/timesheets/"+url.PathEscape(args[0]), nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Timesheet %s deleted\n", args[0])
		return nil
	},
}

var timesheetHistoryCmd = &cobra.Command{
	Use:   "history <timesheet-id>",
	Short: "Show the recorded lifecycle events of a timesheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := call(cmd.Context(), http.MethodGet, "/v1/timesheets/"+url.PathEscape(args[0])+"/history", nil)
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), resp.Events)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{timesheetListCmd, timesheetAllCmd} {
		c.Flags().StringVar(&listStatus, "status", "", "Filter by status (draft, submitted, approved, rejected)")
	}
	timesheetAllCmd.Flags().StringVar(&listDepartment, "department", "", "Filter by department")

	timesheetApproveCmd.Flags().StringVar(&actorID, "by", "", "Approver user ID")
	_ = timesheetApproveCmd.MarkFlagRequired("by")
	timesheetRejectCmd.Flags().StringVar(&actorID, "by", "", "Rejecter user ID")
	_ = timesheetRejectCmd.MarkFlagRequired("by")
	timesheetRejectCmd.Flags().StringVar(&rejectReason, "reason", "", "Why the timesheet is rejected")

	timesheetCmd.AddCommand(
		timesheetCurrentCmd,
		timesheetShowCmd,
		timesheetListCmd,
		timesheetAllCmd,
		timesheetSubmitCmd,
		timesheetApproveCmd,
		timesheetRejectCmd,
		timesheetRevertCmd,
		timesheetDeleteCmd,
		timesheetHistoryCmd,
	)
}
