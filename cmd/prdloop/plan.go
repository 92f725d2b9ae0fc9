package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/mark3labs/prdloop/internal/config"
	"github.com/mark3labs/prdloop/internal/ledger"
	"github.com/mark3labs/prdloop/internal/logger"
	"github.com/mark3labs/prdloop/internal/pipeline"
	"github.com/mark3labs/prdloop/internal/prd"
	"github.com/spf13/cobra"
)

var planFlags struct {
	slug         string
	requirements []string
	profiles     []string
	force        bool
}

var planCmd = &cobra.Command{
	Use:   "plan <title>",
	Short: "Create a PRD for a new feature",
	Long: `Create a Product Requirements Document for a new feature.

Each --requirement becomes one unit of work, in the order given. A
requirement is a title, optionally followed by "::" and a semicolon
separated list of acceptance criteria:

  prdloop plan "User auth" \
    --requirement "Login endpoint :: returns 200 on valid creds; rejects bad password" \
    --requirement "Session cookie"

Validation profiles default to whatever the detect rules in
validation.yml match in the current directory; override with --profile.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFlags.slug, "slug", "", "Feature slug (default: derived from title)")
	planCmd.Flags().StringArrayVarP(&planFlags.requirements, "requirement", "r", nil, "Requirement, format \"Title\" or \"Title :: criterion; criterion\" (repeatable)")
	planCmd.Flags().StringArrayVarP(&planFlags.profiles, "profile", "p", nil, "Validation profile name (repeatable, default: auto-detect)")
	planCmd.Flags().BoolVarP(&planFlags.force, "force", "f", false, "Overwrite an existing PRD for this slug")
}

func runPlan(cmd *cobra.Command, args []string) error {
	title := strings.TrimSpace(args[0])
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if len(planFlags.requirements) == 0 {
		return fmt.Errorf("at least one --requirement is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	featureSlug := planFlags.slug
	if featureSlug == "" {
		featureSlug = slug.Make(title)
	}
	if !slug.IsSlug(featureSlug) {
		return fmt.Errorf("invalid slug: %s", featureSlug)
	}

	store := prd.NewStore(cfg.DataDir)
	if _, err := store.Load(featureSlug); err == nil && !planFlags.force {
		return fmt.Errorf("PRD already exists for %s\n\nUse --force to overwrite", featureSlug)
	}

	// Seed a default validation.yml on first use so detect rules have
	// something to match against.
	if err := ensureValidationConfig(cfg.DataDir); err != nil {
		return err
	}
	profilesCfg, err := pipeline.LoadConfig(cfg.DataDir)
	if err != nil {
		return err
	}

	profiles := planFlags.profiles
	if len(profiles) == 0 {
		profiles = profilesCfg.DetectProfiles(".")
		if len(profiles) == 0 {
			logger.Warn("No validation profile detected for this directory; validation will pass vacuously")
		}
	}
	// Fail now on a typo'd profile name, not on iteration one.
	if _, err := profilesCfg.Resolve(profiles); err != nil {
		return err
	}

	doc := &prd.Document{
		SchemaVersion:      prd.SchemaVersion,
		Slug:               featureSlug,
		Title:              title,
		ValidationProfiles: profiles,
	}
	for i, raw := range planFlags.requirements {
		reqTitle, criteria := parseRequirement(raw)
		if reqTitle == "" {
			return fmt.Errorf("requirement %d has an empty title", i+1)
		}
		doc.Requirements = append(doc.Requirements, &prd.Requirement{
			ID:                 fmt.Sprintf("REQ-%02d", i+1),
			Title:              reqTitle,
			Status:             prd.StatusTodo,
			AcceptanceCriteria: criteria,
		})
	}

	if err := store.Persist(doc); err != nil {
		return err
	}

	// A forced re-plan starts history over too.
	if planFlags.force {
		ledgerPath := ledger.NewStore(cfg.DataDir).Path(featureSlug)
		if err := os.Remove(ledgerPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing old ledger: %w", err)
		}
	}

	fmt.Printf("Created PRD %s (%d requirements, profiles: %s)\n",
		store.Path(featureSlug), len(doc.Requirements), strings.Join(profiles, ", "))
	fmt.Printf("Next: prdloop run %s\n", featureSlug)
	return nil
}

// parseRequirement splits "Title :: crit; crit" into its parts.
func parseRequirement(raw string) (string, []string) {
	title, rest, found := strings.Cut(raw, "::")
	title = strings.TrimSpace(title)
	if !found {
		return title, nil
	}
	var criteria []string
	for _, c := range strings.Split(rest, ";") {
		if c = strings.TrimSpace(c); c != "" {
			criteria = append(criteria, c)
		}
	}
	return title, criteria
}

// ensureValidationConfig writes a starter validation.yml if none exists.
func ensureValidationConfig(dataDir string) error {
	path := filepath.Join(dataDir, pipeline.ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultValidationConfig), 0644); err != nil {
		return fmt.Errorf("writing default validation config: %w", err)
	}
	logger.Info("Wrote default validation config to %s", path)
	return nil
}

const defaultValidationConfig = `version: 1
profiles:
  go:
    detect:
      any_files_exist: ["go.mod"]
    commands:
      fmt: "test -z \"$(gofmt -l .)\""
      lint: "go vet ./..."
      typecheck: "go build ./..."
      test: "go test ./..."
  node:
    detect:
      any_files_exist: ["package.json"]
    commands:
      lint: "npx eslint ."
      typecheck: "npx tsc --noEmit"
      test: "npm test"
  python:
    detect:
      any_files_exist: ["pyproject.toml", "setup.py"]
    commands:
      fmt: "ruff format --check ."
      lint: "ruff check ."
      test: "pytest"
`
