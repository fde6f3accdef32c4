// Package secrets scrubs credentials out of artifact text before it is
// chunked and embedded. Indexed chunks can surface in prompts and retrieval
// output, so anything the detector flags is masked first.
package secrets

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
	"go.uber.org/zap"
)

const mask = "[REDACTED]"

// Finding is one detected secret.
type Finding struct {
	RuleID string
	Line   int
	Secret string
}

// Scrubber detects and masks secrets using the gitleaks rule set.
type Scrubber struct {
	detector *detect.Detector
	logger   *zap.Logger
}

// NewScrubber builds a detector with the default gitleaks rules plus the
// given allowlist.
func NewScrubber(allowlist *Allowlist, logger *zap.Logger) (*Scrubber, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("create secret detector: %w", err)
	}
	if allowlist != nil {
		applyAllowlist(&detector.Config, allowlist)
	}
	return &Scrubber{detector: detector, logger: logger}, nil
}

// Detect returns all findings in content.
func (s *Scrubber) Detect(content string) []Finding {
	raw := s.detector.DetectString(content)
	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		findings = append(findings, Finding{RuleID: f.RuleID, Line: f.StartLine, Secret: f.Secret})
	}
	return findings
}

// Scrub replaces every detected secret in content with a mask and reports
// how many were found.
func (s *Scrubber) Scrub(path, content string) (string, int) {
	findings := s.Detect(content)
	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		content = strings.ReplaceAll(content, f.Secret, mask)
		s.logger.Warn("masked secret before indexing",
			zap.String("path", path),
			zap.String("rule", f.RuleID),
			zap.Int("line", f.Line))
	}
	return content, len(findings)
}

// applyAllowlist appends the user's path and content patterns to the
// detector config. Patterns are validated at load time.
func applyAllowlist(cfg *config.Config, allowlist *Allowlist) {
	global := &config.Allowlist{Description: "sprintd allowlist"}
	for _, pattern := range allowlist.Paths {
		global.Paths = append(global.Paths, (*gitleaksRegexp.Regexp)(regexp.MustCompile(pattern)))
	}
	for _, pattern := range allowlist.Regexes {
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(regexp.MustCompile(pattern)))
	}
	cfg.Allowlists = append(cfg.Allowlists, global)
}
