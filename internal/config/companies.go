package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CompaniesFile is the optional YAML allow-list of boards queried directly.
//
//	ashby: [pear, deel]
//	lever: [acme]
//	greenhouse: [globex]
//	smartrecruiters: [Initech]
type CompaniesFile struct {
	Ashby           []string `yaml:"ashby"`
	Lever           []string `yaml:"lever"`
	Greenhouse      []string `yaml:"greenhouse"`
	SmartRecruiters []string `yaml:"smartrecruiters"`
}

// OverlayCompanies replaces the configured slug lists with the non-empty
// lists from the companies file. A missing file is not an error.
func OverlayCompanies(cfg *Config, companiesPath string) error {
	if companiesPath == "" {
		return nil
	}
	// #nosec G304 -- path comes from operator configuration.
	b, err := os.ReadFile(companiesPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read companies file: %w", err)
	}

	var cf CompaniesFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return fmt.Errorf("parse companies file: %w", err)
	}

	if len(cf.Ashby) > 0 {
		cfg.Direct.Ashby = cf.Ashby
	}
	if len(cf.Lever) > 0 {
		cfg.Direct.Lever = cf.Lever
	}
	if len(cf.Greenhouse) > 0 {
		cfg.Direct.Greenhouse = cf.Greenhouse
	}
	if len(cf.SmartRecruiters) > 0 {
		cfg.Direct.SmartRecruiters = cf.SmartRecruiters
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default .env) into
// the process environment without overriding variables that are already set.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
