package security

import (
	"strconv"
	"time"

	"github.com/forest6511/passlocal/pkg/vault"
)

// DefaultStaleAfter is how long a value may go unchanged before it is flagged.
const DefaultStaleAfter = 365 * 24 * time.Hour

// SecurityScore represents the overall security assessment of a vault.
type SecurityScore struct {
	// Overall is the total score (0-100).
	Overall int `json:"overall"`
	// Components breaks down the score into categories.
	Components ScoreComponents `json:"components"`
	// Issues contains the detected security issues.
	Issues []SecurityIssue `json:"issues"`
	// Suggestions provides actionable recommendations.
	Suggestions []string `json:"suggestions"`
	// Limited indicates some issues were left out of the list.
	Limited bool `json:"limited"`
}

// ScoreComponents breaks down the security score into categories.
// Each component contributes up to 25 points (total: 100).
type ScoreComponents struct {
	// StrengthScore is based on average value strength (0-25).
	StrengthScore int `json:"strength"`
	// UniquenessScore is based on percentage of unique values (0-25).
	UniquenessScore int `json:"uniqueness"`
	// FreshnessScore is based on percentage of recently updated secrets (0-25).
	FreshnessScore int `json:"freshness"`
	// CoverageScore is based on percentage of secrets holding a value (0-25).
	CoverageScore int `json:"coverage"`
}

// IssueType identifies the type of security issue.
type IssueType string

const (
	// IssueWeakValue indicates a value with insufficient strength.
	IssueWeakValue IssueType = "weak"
	// IssueDuplicateValue indicates a value reused across secrets.
	IssueDuplicateValue IssueType = "duplicate"
	// IssueStale indicates a secret not updated for a long time.
	IssueStale IssueType = "stale"
	// IssueEmptyValue indicates a secret with no value.
	IssueEmptyValue IssueType = "empty_value"
)

// Severity indicates the urgency of a security issue.
type Severity string

const (
	// SeverityCritical requires immediate attention.
	SeverityCritical Severity = "critical"
	// SeverityWarning should be addressed soon.
	SeverityWarning Severity = "warning"
	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"
)

// SecurityIssue represents a detected security problem. It never carries a
// secret value.
type SecurityIssue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	// SecretID and SecretName are empty unless names were requested.
	SecretID   string `json:"secret_id,omitempty"`
	SecretName string `json:"secret_name,omitempty"`
	// SecretIDs and SecretNames are used for duplicate issues.
	SecretIDs   []string `json:"secret_ids,omitempty"`
	SecretNames []string `json:"secret_names,omitempty"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

func (i *SecurityIssue) attach(s vault.Secret, includeNames bool) {
	if includeNames {
		i.SecretID = s.ID
		i.SecretName = s.Name
	}
}

// Calculator computes security scores for a set of secrets.
type Calculator struct {
	limits     Limits
	staleAfter time.Duration
	now        func() time.Time
	hmacKey    []byte
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLimits caps the number of listed issues.
func WithLimits(l Limits) Option {
	return func(c *Calculator) { c.limits = l }
}

// WithStaleAfter sets the age after which a secret counts as stale.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Calculator) { c.staleAfter = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// NewCalculator creates a calculator with DefaultLimits and DefaultStaleAfter.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		limits:     DefaultLimits(),
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CalculateScore computes the full security score for the secrets.
func (c *Calculator) CalculateScore(secrets []vault.Secret, includeNames bool) (*SecurityScore, error) {
	if len(secrets) == 0 {
		return &SecurityScore{
			Overall: 100,
			Components: ScoreComponents{
				StrengthScore:   25,
				UniquenessScore: 25,
				FreshnessScore:  25,
				CoverageScore:   25,
			},
			Issues:      []SecurityIssue{},
			Suggestions: []string{},
		}, nil
	}

	strengthScore := c.calculateStrengthScore(secrets)
	weakIssues := c.FindWeakValues(secrets, includeNames, 0)
	uniquenessScore, dupIssues, err := c.calculateUniquenessScore(secrets, includeNames)
	if err != nil {
		return nil, err
	}
	freshnessScore, staleIssues := c.calculateFreshnessScore(secrets, includeNames)
	coverageScore, emptyIssues := c.calculateCoverageScore(secrets, includeNames)

	allIssues := make([]SecurityIssue, 0, len(weakIssues)+len(dupIssues)+len(staleIssues)+len(emptyIssues))
	allIssues = append(allIssues, weakIssues...)
	allIssues = append(allIssues, dupIssues...)
	allIssues = append(allIssues, staleIssues...)
	allIssues = append(allIssues, emptyIssues...)

	limited := false
	if c.limits.IsLimited() {
		allIssues, limited = c.applyLimits(allIssues)
	}

	return &SecurityScore{
		Overall: strengthScore + uniquenessScore + freshnessScore + coverageScore,
		Components: ScoreComponents{
			StrengthScore:   strengthScore,
			UniquenessScore: uniquenessScore,
			FreshnessScore:  freshnessScore,
			CoverageScore:   coverageScore,
		},
		Issues:      allIssues,
		Suggestions: generateSuggestions(allIssues),
		Limited:     limited,
	}, nil
}

// calculateStrengthScore averages the strength points of non-empty values.
func (c *Calculator) calculateStrengthScore(secrets []vault.Secret) int {
	totalPoints, count := 0, 0
	for _, s := range secrets {
		if s.Value == "" {
			continue
		}
		count++
		totalPoints += CalculateStrength(s.Value, ClassifySecret(s)).Points()
	}
	if count == 0 {
		return 25
	}
	score := totalPoints / count
	if score > 25 {
		score = 25
	}
	return score
}

// calculateUniquenessScore scores the ratio of distinct values.
func (c *Calculator) calculateUniquenessScore(secrets []vault.Secret, includeNames bool) (int, []SecurityIssue, error) {
	duplicates, err := c.FindDuplicates(secrets, includeNames, 0)
	if err != nil {
		return 0, nil, err
	}

	distinct := make(map[string]struct{})
	total := 0
	for _, s := range secrets {
		value := normalizeValue(s.Value)
		if value == "" {
			continue
		}
		total++
		distinct[computeValueHash(value, c.hmacKey)] = struct{}{}
	}
	if total == 0 {
		return 25, nil, nil
	}

	issues := make([]SecurityIssue, 0, len(duplicates))
	for _, dup := range duplicates {
		issues = append(issues, SecurityIssue{
			Type:        IssueDuplicateValue,
			Severity:    SeverityWarning,
			SecretIDs:   dup.SecretIDs,
			SecretNames: dup.SecretNames,
			Description: strconv.Itoa(dup.Count) + " secrets share the same value",
			Suggestion:  "Use unique values for each secret",
		})
	}

	return len(distinct) * 25 / total, issues, nil
}

// calculateFreshnessScore flags secrets whose value has not changed within staleAfter.
func (c *Calculator) calculateFreshnessScore(secrets []vault.Secret, includeNames bool) (int, []SecurityIssue) {
	if c.staleAfter <= 0 {
		return 25, nil
	}
	cutoff := c.now().Add(-c.staleAfter)

	var issues []SecurityIssue
	for _, s := range secrets {
		if !s.UpdatedAt.Before(cutoff) {
			continue
		}
		days := int(c.now().Sub(s.UpdatedAt).Hours() / 24)
		issue := SecurityIssue{
			Type:        IssueStale,
			Severity:    SeverityInfo,
			Description: "Secret not updated for " + formatDays(days),
			Suggestion:  "Consider rotating long-lived credentials",
		}
		issue.attach(s, includeNames)
		issues = append(issues, issue)
	}

	fresh := len(secrets) - len(issues)
	return fresh * 25 / len(secrets), issues
}

// calculateCoverageScore flags secrets without a value.
func (c *Calculator) calculateCoverageScore(secrets []vault.Secret, includeNames bool) (int, []SecurityIssue) {
	var issues []SecurityIssue
	for _, s := range secrets {
		if s.Value != "" {
			continue
		}
		issue := SecurityIssue{
			Type:        IssueEmptyValue,
			Severity:    SeverityInfo,
			Description: "Secret has no value",
			Suggestion:  "Fill in the value or delete the entry",
		}
		issue.attach(s, includeNames)
		issues = append(issues, issue)
	}
	filled := len(secrets) - len(issues)
	return filled * 25 / len(secrets), issues
}

// applyLimits caps weak and duplicate issues.
func (c *Calculator) applyLimits(issues []SecurityIssue) ([]SecurityIssue, bool) {
	limited := false
	weakCount, dupCount := 0, 0
	result := make([]SecurityIssue, 0, len(issues))

	for _, issue := range issues {
		switch issue.Type {
		case IssueWeakValue:
			if c.limits.WeakLimit > 0 && weakCount >= c.limits.WeakLimit {
				limited = true
				continue
			}
			weakCount++
		case IssueDuplicateValue:
			if c.limits.DuplicateLimit > 0 && dupCount >= c.limits.DuplicateLimit {
				limited = true
				continue
			}
			dupCount++
		}
		result = append(result, issue)
	}

	return result, limited
}

// generateSuggestions creates actionable recommendations based on issues.
func generateSuggestions(issues []SecurityIssue) []string {
	seen := make(map[IssueType]bool)
	for _, issue := range issues {
		seen[issue.Type] = true
	}

	suggestions := []string{}
	if seen[IssueWeakValue] {
		suggestions = append(suggestions, "Update weak values with stronger alternatives (passlocal generate)")
	}
	if seen[IssueDuplicateValue] {
		suggestions = append(suggestions, "Replace duplicate values with unique ones")
	}
	if seen[IssueStale] {
		suggestions = append(suggestions, "Rotate credentials that have not changed in over a year")
	}
	if seen[IssueEmptyValue] {
		suggestions = append(suggestions, "Remove or complete entries without a value")
	}
	return suggestions
}

// formatDays returns a human-readable day count.
func formatDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return strconv.Itoa(days) + " days"
}
