package fieldmap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/referral-intake/platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

type fileEntry struct {
	Label  string `yaml:"label"`
	Report *struct {
		Column string `yaml:"column"`
		Type   string `yaml:"type"`
	} `yaml:"report"`
	API *struct {
		Path    string `yaml:"path"`
		Default string `yaml:"default"`
	} `yaml:"api"`
	Group string `yaml:"group"`
}

type mappingFile struct {
	Labels []fileEntry `yaml:"labels"`
}

// Load reads a YAML mapping file. An empty path returns the built-in table.
func Load(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Table{}, err
	}
	return Parse(content)
}

// Parse decodes and validates a YAML mapping document.
func Parse(content []byte) (Table, error) {
	var file mappingFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return Table{}, err
	}
	if len(file.Labels) == 0 {
		return Table{}, errors.New("field mapping is empty")
	}

	entries := make(map[string]Entry, len(file.Labels))
	for _, fe := range file.Labels {
		if fe.Label == "" {
			return Table{}, errors.New("field mapping entry without label")
		}
		if _, dup := entries[fe.Label]; dup {
			return Table{}, fmt.Errorf("duplicate field mapping label %q", fe.Label)
		}

		var e Entry
		if fe.Report != nil {
			typ := models.StorageType(strings.ToLower(strings.TrimSpace(fe.Report.Type)))
			if fe.Report.Column == "" || !typ.Valid() {
				return Table{}, fmt.Errorf("label %q: invalid report column %q (%s)", fe.Label, fe.Report.Column, fe.Report.Type)
			}
			e.Report = &ReportColumn{Name: fe.Report.Column, Type: typ}
		}
		if fe.API != nil {
			if fe.API.Path == "" {
				return Table{}, fmt.Errorf("label %q: api path required", fe.Label)
			}
			e.API = &APIPath{Path: fe.API.Path, Default: fe.API.Default}
		}
		e.Group = Group(strings.ToLower(strings.TrimSpace(fe.Group)))
		if !e.Group.Valid() {
			return Table{}, fmt.Errorf("label %q: unknown group %q", fe.Label, fe.Group)
		}
		if e.Group != GroupNone && (e.API == nil || e.API.Default == "") {
			return Table{}, fmt.Errorf("label %q: grouped labels need an api default value", fe.Label)
		}
		entries[fe.Label] = e
	}
	return newTable(entries), nil
}

// LoadRules reads classification phrases from YAML, falling back to the
// defaults for an empty path or for any list left empty in the file.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var rules Rules
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return Rules{}, err
	}
	defaults := DefaultRules()
	if len(rules.CoversheetIdentifiers) == 0 {
		rules.CoversheetIdentifiers = defaults.CoversheetIdentifiers
	}
	if len(rules.ReferralPhrases) == 0 {
		rules.ReferralPhrases = defaults.ReferralPhrases
	}
	return rules, nil
}
