package scheduler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raysh454/a11yscan/internal/model"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultScanSchedule runs recurring scans daily at 02:00.
const DefaultScanSchedule = "0 2 * * *"

// Target is one recurring scan from the targets file.
type Target struct {
	Name              string          `yaml:"name"`
	URL               string          `yaml:"url"`
	Schedule          string          `yaml:"schedule"`
	WCAGLevel         model.WCAGLevel `yaml:"wcag_level"`
	MaxDepth          int             `yaml:"max_depth"`
	MaxPages          int             `yaml:"max_pages"`
	IncludeSubdomains bool            `yaml:"include_subdomains"`
}

// Request is the scan the target triggers.
func (t Target) Request() model.ScanRequest {
	return model.ScanRequest{
		URL:               t.URL,
		WCAGLevel:         t.WCAGLevel,
		MaxDepth:          t.MaxDepth,
		MaxPages:          t.MaxPages,
		IncludeSubdomains: t.IncludeSubdomains,
	}
}

type targetsFile struct {
	Targets []Target `yaml:"targets"`
}

// LoadTargets reads and validates a targets file.
//
//	targets:
//	  - name: docs
//	    url: https://docs.example.com/
//	    schedule: "0 3 * * 1"
//	    wcag_level: AA
//	    max_pages: 50
func LoadTargets(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file %q: %w", path, err)
	}
	targets, err := ParseTargets(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return targets, nil
}

// ParseTargets decodes targets YAML, rejecting unknown keys, and fills the
// default schedule.
func ParseTargets(data []byte) ([]Target, error) {
	var f targetsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse targets: %w", err)
	}

	seen := make(map[string]bool)
	for i := range f.Targets {
		t := &f.Targets[i]
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return nil, fmt.Errorf("target #%d is missing the 'name' field", i+1)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true

		if t.Schedule == "" {
			t.Schedule = DefaultScanSchedule
		}
		if _, err := cron.ParseStandard(t.Schedule); err != nil {
			return nil, fmt.Errorf("target %q: invalid schedule %q: %w", t.Name, t.Schedule, err)
		}
		if _, err := t.Request().Normalize(); err != nil {
			return nil, fmt.Errorf("target %q: %w", t.Name, err)
		}
	}
	return f.Targets, nil
}
