package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	staffFirst string
	staffLast  string
	staffDept  string
)

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Manage the staff directory used in admin listings",
}

var staffSetCmd = &cobra.Command{
	Use:   "set <user-id>",
	Short: "Create or update a staff record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := call(cmd.Context(), http.MethodPut, "/v1/staff/"+url.PathEscape(args[0]), map[string]string{
			"firstName":  staffFirst,
			"lastName":   staffLast,
			"department": staffDept,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Staff %s saved\n", args[0])
		return nil
	},
}

func init() {
	staffSetCmd.Flags().StringVar(&staffFirst, "first", "", "First name")
	staffSetCmd.Flags().StringVar(&staffLast, "last", "", "Last name")
	staffSetCmd.Flags().StringVar(&staffDept, "department", "", "Department")

	staffCmd.AddCommand(staffSetCmd)
}
