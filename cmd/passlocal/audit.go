package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/internal/cli"
)

var (
	auditLimit int
	auditSince string
	auditJSON  bool
)

var errAuditDisabled = errors.New("audit logging is disabled in the config file")

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the tamper-evident audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit log entries",
	Long: `List recent audit events, oldest first. Targets are folder or secret
ids; names and values are never logged.

Examples:
  passlocal audit list --limit 20
  passlocal audit list --since 7d`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditLog == nil {
			return errAuditDisabled
		}

		var since time.Time
		if auditSince != "" {
			d, err := cli.ParseDuration(auditSince)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			since = time.Now().Add(-d)
		}

		sess, err := openSession()
		if err != nil {
			return err
		}
		defer sess.Lock()

		events, err := auditLog.ListEvents(auditLimit, since)
		if err != nil {
			return fmt.Errorf("failed to list audit events: %w", err)
		}

		out := cmd.OutOrStdout()
		if auditJSON {
			return writeJSON(out, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(out, "No audit events found")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tOPERATION\tRESULT\tSOURCE\tTARGET\tERROR")
		for _, e := range events {
			code := ""
			if e.Error != nil {
				code = e.Error.Code
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Timestamp, e.Operation, e.Result, e.Actor.Source, e.Target, code)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nTotal: %d events\n", len(events))
		return nil
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log HMAC chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditLog == nil {
			return errAuditDisabled
		}

		// Unlocking sets the chain key.
		sess, err := openSession()
		if err != nil {
			return err
		}
		defer sess.Lock()

		result, err := auditLog.Verify()
		if err != nil {
			return fmt.Errorf("failed to verify audit log: %w", err)
		}

		out := cmd.OutOrStdout()
		if auditJSON {
			if err := writeJSON(out, result); err != nil {
				return err
			}
		} else if result.Valid {
			fmt.Fprintf(out, "Audit log verified: %d records, chain intact\n", result.RecordsTotal)
		} else {
			fmt.Fprintln(out, "Audit log verification FAILED")
			fmt.Fprintf(out, "  Records total:    %d\n", result.RecordsTotal)
			fmt.Fprintf(out, "  Records verified: %d\n", result.RecordsVerified)
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  - %s\n", e)
			}
		}
		if !result.Valid {
			return errors.New("audit log integrity check failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditVerifyCmd)

	auditCmd.PersistentFlags().BoolVar(&auditJSON, "json", false, "Output as JSON")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum number of events (0 for all)")
	auditListCmd.Flags().StringVar(&auditSince, "since", "", "Only events newer than this, e.g. 24h, 7d, 2w")
}
