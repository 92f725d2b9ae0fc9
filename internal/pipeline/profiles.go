package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	ierr "github.com/mark3labs/prdloop/internal/errors"
	"github.com/mark3labs/prdloop/internal/logger"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the validation profile configuration file, relative to
// the data directory.
const ConfigFileName = "validation.yml"

// DetectRules describe when a profile applies to a working tree. They are
// consumed at planning time only; the iteration core never evaluates them.
type DetectRules struct {
	AnyFilesExist []string `yaml:"any_files_exist"`
}

// Matches reports whether any of the rule files exist under dir.
func (d DetectRules) Matches(dir string) bool {
	for _, file := range d.AnyFilesExist {
		if _, err := os.Stat(filepath.Join(dir, file)); err == nil {
			return true
		}
	}
	return false
}

// Commands holds one shell command per gate. An empty command means the
// profile has nothing to run for that gate and passes it vacuously.
type Commands struct {
	Fmt       string `yaml:"fmt,omitempty"`
	Lint      string `yaml:"lint,omitempty"`
	Typecheck string `yaml:"typecheck,omitempty"`
	Test      string `yaml:"test,omitempty"`
}

// Profile is a named bundle of toolchain commands.
type Profile struct {
	Name     string      `yaml:"-"`
	Detect   DetectRules `yaml:"detect"`
	Commands Commands    `yaml:"commands"`
}

// Command returns the profile's command for a gate, or "".
func (p *Profile) Command(gate Gate) string {
	switch gate {
	case GateFmt:
		return p.Commands.Fmt
	case GateLint:
		return p.Commands.Lint
	case GateTypecheck:
		return p.Commands.Typecheck
	case GateTest:
		return p.Commands.Test
	}
	return ""
}

// Config is the full validation profile configuration.
type Config struct {
	Version  int                 `yaml:"version"`
	Profiles map[string]*Profile `yaml:"profiles"`
}

// LoadConfig loads the validation configuration from the data directory.
// A missing file is not an error by itself; it becomes a configuration
// error only once a PRD names a profile (see Resolve).
func LoadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("No validation config at %s", path)
			return nil, nil
		}
		return nil, fmt.Errorf("reading validation config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing validation config %s: %w", path, err)
	}
	for name, p := range cfg.Profiles {
		if p == nil {
			cfg.Profiles[name] = &Profile{Name: name}
			continue
		}
		p.Name = name
	}
	logger.Debug("Loaded %d validation profiles from %s", len(cfg.Profiles), path)
	return &cfg, nil
}

// Resolve maps the profile names a PRD references to their configured
// profiles, in the order given. A name with no configuration is a fatal
// configuration error, never a silent skip.
func (c *Config) Resolve(names []string) ([]*Profile, error) {
	profiles := make([]*Profile, 0, len(names))
	for _, name := range names {
		if c == nil || c.Profiles[name] == nil {
			return nil, ierr.NewConfigError("validation profile %q is not configured", name)
		}
		profiles = append(profiles, c.Profiles[name])
	}
	return profiles, nil
}

// DetectProfiles returns the names of profiles whose detect rules match
// the working tree. Planning-time helper for seeding new PRDs.
func (c *Config) DetectProfiles(dir string) []string {
	if c == nil {
		return nil
	}
	var names []string
	for name, p := range c.Profiles {
		if p.Detect.Matches(dir) {
			names = append(names, name)
		}
	}
	return names
}
