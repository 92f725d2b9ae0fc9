package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mark3labs/prdloop/internal/config"
	"github.com/mark3labs/prdloop/internal/ledger"
	"github.com/mark3labs/prdloop/internal/prd"
	"github.com/spf13/cobra"
)

var statusFlags struct {
	events int
}

var statusCmd = &cobra.Command{
	Use:   "status [slug]",
	Short: "Show feature progress",
	Long: `Show progress for all features, or requirement details and recent
iteration history for one feature.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusFlags.events, "events", "e", 5, "Recent ledger events to show in the single-feature view")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	prds := prd.NewStore(cfg.DataDir)
	events := ledger.NewStore(cfg.DataDir)

	if len(args) == 1 {
		return statusFeature(prds, events, args[0])
	}
	return statusOverview(prds, events)
}

func statusOverview(prds *prd.Store, events *ledger.Store) error {
	slugs, err := prds.Slugs()
	if err != nil {
		return err
	}
	if len(slugs) == 0 {
		fmt.Println("No features yet. Start one with: prdloop plan <title>")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Slug", "Title", "Progress", "Iterations", "Active Run"})
	for _, s := range slugs {
		doc, err := prds.Load(s)
		if err != nil {
			return err
		}
		next, err := events.NextIterationNumber(s)
		if err != nil {
			return err
		}
		done, total := doc.Counts()
		tw.AppendRow(table.Row{s, doc.Title, fmt.Sprintf("%d/%d", done, total), next - 1, doc.ActiveRunID})
	}
	tw.Render()
	return nil
}

func statusFeature(prds *prd.Store, events *ledger.Store, slug string) error {
	doc, err := prds.Load(slug)
	if err != nil {
		return err
	}

	done, total := doc.Counts()
	fmt.Printf("%s (%s): %d/%d done\n", doc.Title, doc.Slug, done, total)
	if doc.ActiveRunID != "" {
		fmt.Printf("Active run: %s\n", doc.ActiveRunID)
	}
	if len(doc.ValidationProfiles) > 0 {
		fmt.Printf("Profiles: %s\n", strings.Join(doc.ValidationProfiles, ", "))
	}
	fmt.Println()

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Note"})
	for _, r := range doc.Requirements {
		tw.AppendRow(table.Row{r.ID, r.Title, r.Status, r.BlockedReason})
	}
	tw.Render()

	all, err := events.ReadAll(slug)
	if err != nil {
		return err
	}
	if len(all) == 0 || statusFlags.events <= 0 {
		return nil
	}
	if len(all) > statusFlags.events {
		all = all[len(all)-statusFlags.events:]
	}

	fmt.Println()
	tw = table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Time", "Iter", "Requirement", "Status", "Gates"})
	for _, e := range all {
		tw.AppendRow(table.Row{
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			e.Iteration, e.RequirementID, e.Status, gateSummary(e.Validation),
		})
	}
	tw.Render()
	return nil
}

// gateSummary renders a validation summary as "fmt=pass lint=fail ...".
func gateSummary(v *ledger.ValidationResult) string {
	if v == nil {
		return ""
	}
	var parts []string
	for _, gate := range []string{"fmt", "lint", "typecheck", "test"} {
		if state, ok := v.Gates[gate]; ok {
			parts = append(parts, gate+"="+state)
		}
	}
	if v.Escalated {
		parts = append(parts, "(escalated)")
	}
	return strings.Join(parts, " ")
}
