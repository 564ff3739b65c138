package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var periodDate string

var periodCmd = &cobra.Command{
	Use:   "period",
	Short: "Show the pay period containing today or --date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/v1/pay-period"
		if periodDate != "" {
			path += "?" + url.Values{"date": {periodDate}}.Encode()
		}
		resp, err := call(cmd.Context(), http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		p := resp.PayPeriod
		fmt.Fprintf(cmd.OutOrStdout(), "Pay period: %s - %s (%s to %s)\n",
			p.StartFormatted, p.EndFormatted, p.Start, p.End)
		return nil
	},
}

func init() {
	periodCmd.Flags().StringVar(&periodDate, "date", "", "Date (YYYY-MM-DD) to resolve")
}
