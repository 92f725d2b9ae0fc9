// Package template builds the prompt handed to the external agent for one
// iteration. Templates use {{variable}} placeholders.
package template

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/prdloop/internal/pipeline"
	"github.com/mark3labs/prdloop/internal/prd"
)

// maxFailureOutput bounds how much prior validation output is fed back
// into the prompt.
const maxFailureOutput = 2000

// Variables holds the data to be injected into template placeholders.
type Variables struct {
	Slug          string // Feature slug
	RequirementID string // Requirement under iteration
	Title         string // Requirement title
	Criteria      string // Formatted acceptance criteria
	Iteration     string // Current iteration number
	Gates         string // Formatted validation gate list
	LastFailure   string // Feedback from the previous failed attempt
	MCPURL        string // Endpoint of the requirement tools server
}

// Render replaces {{variable}} placeholders in template with actual values.
func Render(template string, vars Variables) string {
	replacements := map[string]string{
		"{{slug}}":           vars.Slug,
		"{{requirement_id}}": vars.RequirementID,
		"{{title}}":          vars.Title,
		"{{criteria}}":       vars.Criteria,
		"{{iteration}}":      vars.Iteration,
		"{{gates}}":          vars.Gates,
		"{{last_failure}}":   vars.LastFailure,
		"{{mcp_url}}":        vars.MCPURL,
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// GetTemplate returns the template content: the file at customPath when
// given, the embedded default otherwise.
func GetTemplate(customPath string) (string, error) {
	if customPath == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(customPath)
	if err != nil {
		return "", fmt.Errorf("failed to read template file %s: %w", customPath, err)
	}
	return string(data), nil
}

// BuildConfig holds configuration for building a prompt.
type BuildConfig struct {
	Slug         string           // Feature slug
	Requirement  *prd.Requirement // Requirement under iteration
	Iteration    int              // Current iteration number
	Escalate     bool             // Whether the test gate runs this iteration
	LastFailure  string           // Message from the last failed event, if any
	MCPURL       string           // Requirement tools endpoint
	TemplatePath string           // Path to custom template (optional)
}

// BuildPrompt formats the requirement and prior failure feedback and
// injects them into the template.
func BuildPrompt(cfg BuildConfig) (string, error) {
	tmpl, err := GetTemplate(cfg.TemplatePath)
	if err != nil {
		return "", err
	}

	vars := Variables{
		Slug:          cfg.Slug,
		RequirementID: cfg.Requirement.ID,
		Title:         cfg.Requirement.Title,
		Criteria:      formatCriteria(cfg.Requirement.AcceptanceCriteria),
		Iteration:     strconv.Itoa(cfg.Iteration),
		Gates:         formatGates(cfg.Escalate),
		LastFailure:   formatLastFailure(cfg.LastFailure),
		MCPURL:        cfg.MCPURL,
	}

	return Render(tmpl, vars), nil
}

func formatCriteria(criteria []string) string {
	if len(criteria) == 0 {
		return "(none recorded)"
	}
	var sb strings.Builder
	for _, c := range criteria {
		sb.WriteString("- ")
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatGates(escalate bool) string {
	var sb strings.Builder
	for i, gate := range pipeline.Gates(escalate) {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, gate))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatLastFailure renders the previous attempt's diagnostics, truncated
// head and tail so the prompt stays within a sane size.
func formatLastFailure(failure string) string {
	if failure == "" {
		return ""
	}
	return "## Previous Attempt Failed\n" +
		Truncate(failure, maxFailureOutput) +
		"\nFix these errors before finishing."
}

// Truncate keeps the head and tail of long output, dropping the middle.
// Error summaries tend to live at the edges.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	head := max * 2 / 3
	tail := max - head
	omitted := len(s) - head - tail
	return s[:head] + fmt.Sprintf("\n... (%d bytes omitted) ...\n", omitted) + s[len(s)-tail:]
}
