package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/pkg/security"
	"github.com/forest6511/passlocal/pkg/vault"
)

// Security command flags
var (
	securityVerbose   bool
	securityJSON      bool
	securityAll       bool
	securityStaleDays int
)

var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Analyze vault security health",
	Long: `Analyze the health of the secrets in your vault.

The score adds up four components of 0-25 points each:
  - Strength:   average strength of the values
  - Uniqueness: share of values not reused elsewhere
  - Freshness:  share of secrets changed within --stale-days
  - Coverage:   share of secrets that hold a value

Only the top issues are listed unless --all is given. Values are never
printed.

Examples:
  passlocal security
  passlocal security --verbose --all
  passlocal security duplicates`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, done, err := vaultForReport()
		if err != nil {
			return err
		}
		defer done()

		score, err := newSecurityCalculator().CalculateScore(v.Secrets, true)
		if err != nil {
			return fmt.Errorf("failed to calculate security score: %w", err)
		}

		out := cmd.OutOrStdout()
		if securityJSON {
			return writeJSON(out, score)
		}
		outputSecurityText(out, score, securityVerbose)
		return nil
	},
}

var securityDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List secrets that share a value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, done, err := vaultForReport()
		if err != nil {
			return err
		}
		defer done()

		limits := securityLimits()
		groups, err := newSecurityCalculator().FindDuplicates(v.Secrets, true, limits.DuplicateLimit)
		if err != nil {
			return fmt.Errorf("failed to find duplicates: %w", err)
		}

		out := cmd.OutOrStdout()
		if securityJSON {
			return writeJSON(out, groups)
		}
		if len(groups) == 0 {
			fmt.Fprintln(out, "No duplicate values found.")
			return nil
		}
		fmt.Fprintf(out, "Duplicate values (%d groups)\n\n", len(groups))
		for i, g := range groups {
			fmt.Fprintf(out, "%d. %d secrets share one value:\n", i+1, g.Count)
			for _, name := range g.SecretNames {
				fmt.Fprintf(out, "   - %s\n", name)
			}
		}
		if limits.IsLimited() && len(groups) >= limits.DuplicateLimit {
			fmt.Fprintln(out, "\nShowing the top groups only; use --all for the full list.")
		}
		return nil
	},
}

var securityWeakCmd = &cobra.Command{
	Use:   "weak",
	Short: "List secrets with weak values",
	Long: `List secrets whose value is short for its kind.

Secrets whose key or name mentions token, api, key, bearer or access are
judged as API keys (at least 16 characters); all others as passwords (at
least 8 characters).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, done, err := vaultForReport()
		if err != nil {
			return err
		}
		defer done()

		limits := securityLimits()
		issues := newSecurityCalculator().FindWeakValues(v.Secrets, true, limits.WeakLimit)

		out := cmd.OutOrStdout()
		if securityJSON {
			return writeJSON(out, issues)
		}
		if len(issues) == 0 {
			fmt.Fprintln(out, "No weak values found.")
			return nil
		}
		fmt.Fprintf(out, "Weak values (%d)\n\n", len(issues))
		for i, issue := range issues {
			fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, issue.SecretName, issue.Description)
		}
		if limits.IsLimited() && len(issues) >= limits.WeakLimit {
			fmt.Fprintln(out, "\nShowing the top entries only; use --all for the full list.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(securityCmd)
	securityCmd.AddCommand(securityDuplicatesCmd, securityWeakCmd)

	pf := securityCmd.PersistentFlags()
	pf.BoolVar(&securityJSON, "json", false, "Output as JSON")
	pf.BoolVar(&securityAll, "all", false, "List every issue instead of the top ones")
	pf.IntVar(&securityStaleDays, "stale-days", int(security.DefaultStaleAfter.Hours()/24), "Days after which an unchanged secret counts as stale")
	securityCmd.Flags().BoolVarP(&securityVerbose, "verbose", "v", false, "Show suggestions")
}

// vaultForReport unlocks the vault for a read-only report.
func vaultForReport() (*vault.Vault, func(), error) {
	sess, err := openSession()
	if err != nil {
		return nil, nil, err
	}
	v, err := sess.Vault()
	if err != nil {
		sess.Lock()
		return nil, nil, err
	}
	return v, sess.Lock, nil
}

func securityLimits() security.Limits {
	if securityAll {
		return security.Unlimited()
	}
	return security.DefaultLimits()
}

func newSecurityCalculator() *security.Calculator {
	opts := []security.Option{security.WithLimits(securityLimits())}
	if securityStaleDays > 0 {
		opts = append(opts, security.WithStaleAfter(time.Duration(securityStaleDays)*24*time.Hour))
	}
	return security.NewCalculator(opts...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputSecurityText(w io.Writer, score *security.SecurityScore, verbose bool) {
	var rating string
	switch {
	case score.Overall >= 90:
		rating = "Excellent"
	case score.Overall >= 70:
		rating = "Good"
	case score.Overall >= 50:
		rating = "Fair"
	default:
		rating = "Needs attention"
	}
	fmt.Fprintf(w, "Security score: %d/100 (%s)\n\n", score.Overall, rating)

	c := score.Components
	fmt.Fprintln(w, "Components:")
	fmt.Fprintf(w, "  Strength:   %2d/25 %s\n", c.StrengthScore, progressBar(c.StrengthScore, 25))
	fmt.Fprintf(w, "  Uniqueness: %2d/25 %s\n", c.UniquenessScore, progressBar(c.UniquenessScore, 25))
	fmt.Fprintf(w, "  Freshness:  %2d/25 %s\n", c.FreshnessScore, progressBar(c.FreshnessScore, 25))
	fmt.Fprintf(w, "  Coverage:   %2d/25 %s\n", c.CoverageScore, progressBar(c.CoverageScore, 25))
	fmt.Fprintln(w)

	if len(score.Issues) > 0 {
		fmt.Fprintf(w, "Issues (%d):\n", len(score.Issues))
		for i, issue := range score.Issues {
			who := ""
			if issue.SecretName != "" {
				who = fmt.Sprintf(" %q", issue.SecretName)
			} else if len(issue.SecretNames) > 0 {
				who = " " + strings.Join(issue.SecretNames, ", ")
			}
			fmt.Fprintf(w, "  %d. [%s]%s: %s\n", i+1, strings.ToUpper(string(issue.Type)), who, issue.Description)
		}
		fmt.Fprintln(w)
	}

	if verbose && len(score.Suggestions) > 0 {
		fmt.Fprintln(w, "Suggestions:")
		for _, s := range score.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
		fmt.Fprintln(w)
	}

	if score.Limited {
		fmt.Fprintln(w, "Some issues were left out; use --all to list them.")
	}
}

// progressBar renders value out of maxVal as a 20-cell bar.
func progressBar(value, maxVal int) string {
	const width = 20
	if maxVal <= 0 {
		return ""
	}
	filled := value * width / maxVal
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
