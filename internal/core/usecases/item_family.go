package usecases

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FamilyIcedCapp tags items whose name matches one of the watched patterns.
const FamilyIcedCapp = "iced_capp"

// ItemClassifier assigns a family to menu items by name.
type ItemClassifier struct {
	family   string
	patterns []*regexp.Regexp
}

// NewItemClassifier compiles patterns case-insensitively. Blank patterns are
// skipped.
func NewItemClassifier(family string, patterns []string) (*ItemClassifier, error) {
	c := &ItemClassifier{family: family}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("item pattern %q: %w", p, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// Family returns the family for name, or "" when no pattern matches.
// Accents are folded first so "Capp glacé" and "Capp glace" classify alike.
func (c *ItemClassifier) Family(name string) string {
	if c == nil || name == "" {
		return ""
	}
	folded := stripAccents(name)
	for _, re := range c.patterns {
		if re.MatchString(name) || re.MatchString(folded) {
			return c.family
		}
	}
	return ""
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
