package secrets

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// ErrInvalidAllowlist marks a present but unparseable allowlist file.
var ErrInvalidAllowlist = errors.New("invalid allowlist")

// Allowlist holds regex patterns excluded from secret detection.
type Allowlist struct {
	Paths   []string
	Regexes []string
}

// LoadAllowlist reads a TOML allowlist. A missing file yields an empty
// allowlist; a present but invalid file is an error, since silently
// ignoring it would re-enable detection the operator meant to suppress.
//
// File shape:
//
//	[allowlist]
//	paths = ["testdata/.*"]
//	regexes = ["EXAMPLE_KEY_[A-Z]+"]
func LoadAllowlist(path string) (*Allowlist, error) {
	out := &Allowlist{}
	if path == "" {
		return out, nil
	}

	var doc struct {
		Allowlist struct {
			Paths   []string `toml:"paths"`
			Regexes []string `toml:"regexes"`
		} `toml:"allowlist"`
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("stat allowlist: %w", err)
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAllowlist, path, err)
	}

	for _, p := range append(doc.Allowlist.Paths, doc.Allowlist.Regexes...) {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrInvalidAllowlist, p, err)
		}
	}

	out.Paths = doc.Allowlist.Paths
	out.Regexes = doc.Allowlist.Regexes
	return out, nil
}
