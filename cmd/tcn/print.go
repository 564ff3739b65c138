package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
)

func printTimesheet(w io.Writer, ts *timesheet.Timesheet) {
	period := payperiod.Period{Start: ts.PayPeriodStart, End: ts.PayPeriodEnd}

	fmt.Fprintf(w, "Timesheet %s\n", ts.ID)
	fmt.Fprintln(w, strings.Repeat("=", 10+len(ts.ID)))
	owner := ts.UserID
	if ts.Owner != nil && ts.Owner.FullName() != "" {
		owner = fmt.Sprintf("%s (%s)", ts.Owner.FullName(), ts.UserID)
	}
	fmt.Fprintf(w, "Staff:   %s\n", owner)
	fmt.Fprintf(w, "Period:  %s\n", period.Label())
	fmt.Fprintf(w, "Status:  %s\n", ts.Status)
	if ts.Status == timesheet.StatusRejected && ts.RejectionReason != "" {
		fmt.Fprintf(w, "Reason:  %s\n", ts.RejectionReason)
	}
	if ts.ApprovedBy != "" {
		fmt.Fprintf(w, "Approver: %s\n", ts.ApprovedBy)
	}

	if len(ts.Entries) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WEEK\tDATE\tSTART\tEND\tBREAK\tHOURS")
		for _, e := range ts.Entries {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.2f\n",
				period.WeekOf(e.Date), payperiod.FormatDate(e.Date),
				dash(e.StartTime), dash(e.EndTime), e.BreakMinutes, e.TotalHours)
		}
		tw.Flush()
	}

	fmt.Fprintln(w)
	printTotals(w, ts.Totals())
}

func printTotals(w io.Writer, t timesheet.Totals) {
	fmt.Fprintf(w, "Week 1: %6.2f h\n", t.Week1Total)
	fmt.Fprintf(w, "Week 2: %6.2f h\n", t.Week2Total)
	fmt.Fprintf(w, "Total:  %6.2f h\n", t.GrandTotal)
}

func printTimesheetList(w io.Writer, list []*timesheet.Timesheet) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No timesheets found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTAFF\tDEPARTMENT\tPERIOD\tSTATUS\tHOURS")
	for _, ts := range list {
		name, dept := ts.UserID, "-"
		if ts.Owner != nil {
			if n := ts.Owner.FullName(); n != "" {
				name = n
			}
			dept = dash(ts.Owner.Department)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			ts.ID, name, dept, payperiod.FormatDate(ts.PayPeriodStart), ts.Status, ts.GrandTotal)
	}
	tw.Flush()
}

func printHistory(w io.Writer, events []timesheet.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tEVENT\tBY\tSTATUS\tHOURS\tREASON")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			ev.OccurredAt.Local().Format("2006-01-02 15:04"), ev.Kind, dash(ev.ActorID),
			ev.Status, ev.GrandTotal, dash(ev.Reason))
	}
	tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
