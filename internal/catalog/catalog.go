// Package catalog holds the immutable option table: canonical option names,
// their point values per category, and the aliases that map user-facing labels
// onto canonical names.
package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// pointsSuffix matches a trailing dash plus point count, e.g. " - 25 Points".
var pointsSuffix = regexp.MustCompile(`\s*[—–-]\s*\d+\s*(?:[Pp]oints?)?\s*$`)

// StripPointsSuffix removes a trailing point annotation and trims the result.
func StripPointsSuffix(raw string) string {
	return strings.TrimSpace(pointsSuffix.ReplaceAllString(raw, ""))
}

// Table is the canonical option table. It is built once and never mutated.
type Table struct {
	options map[string]domain.CanonicalOption
	aliases map[string]string
}

// New builds a Table from per-category point maps and an alias map. Names must
// be unique across categories, point values positive, and every alias must
// target a canonical name.
func New(say, mention map[string]int, aliases map[string]string) (*Table, error) {
	t := &Table{
		options: make(map[string]domain.CanonicalOption, len(say)+len(mention)),
		aliases: make(map[string]string, len(aliases)),
	}

	var errs []string
	add := func(cat domain.Category, points map[string]int) {
		for name, pts := range points {
			name = strings.TrimSpace(name)
			if name == "" {
				errs = append(errs, fmt.Sprintf("%s: empty option name", cat))
				continue
			}
			if pts <= 0 {
				errs = append(errs, fmt.Sprintf("%s: option %q has non-positive points %d", cat, name, pts))
				continue
			}
			if prev, ok := t.options[name]; ok {
				errs = append(errs, fmt.Sprintf("option %q defined in both %s and %s", name, prev.Category, cat))
				continue
			}
			t.options[name] = domain.CanonicalOption{Name: name, Category: cat, PointValue: pts}
		}
	}
	add(domain.CategorySay, say)
	add(domain.CategoryMention, mention)

	for label, target := range aliases {
		label, target = strings.TrimSpace(label), strings.TrimSpace(target)
		if _, ok := t.options[target]; !ok {
			errs = append(errs, fmt.Sprintf("alias %q targets unknown option %q", label, target))
			continue
		}
		t.aliases[label] = target
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, fmt.Errorf("catalog: invalid table:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return t, nil
}

// Normalize strips a point annotation and applies the alias table. Unknown
// labels are returned trimmed and otherwise unchanged.
func (t *Table) Normalize(raw string) string {
	label := StripPointsSuffix(raw)
	if canonical, ok := t.aliases[label]; ok {
		return canonical
	}
	return label
}

// Classify normalizes raw and looks the result up case-sensitively. The
// boolean is false when nothing matches.
func (t *Table) Classify(raw string) (domain.CanonicalOption, bool) {
	opt, ok := t.options[t.Normalize(raw)]
	return opt, ok
}

// Lookup returns the option with exactly this canonical name.
func (t *Table) Lookup(name string) (domain.CanonicalOption, bool) {
	opt, ok := t.options[name]
	return opt, ok
}

// Options returns the options of one category sorted by name.
func (t *Table) Options(cat domain.Category) []domain.CanonicalOption {
	var out []domain.CanonicalOption
	for _, opt := range t.options {
		if opt.Category == cat {
			out = append(out, opt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Aliases returns every alias entry sorted by label.
func (t *Table) Aliases() []domain.AliasEntry {
	out := make([]domain.AliasEntry, 0, len(t.aliases))
	for label, target := range t.aliases {
		out = append(out, domain.AliasEntry{DisplayLabel: label, CanonicalName: target})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayLabel < out[j].DisplayLabel })
	return out
}

// Len returns the number of canonical options.
func (t *Table) Len() int {
	return len(t.options)
}
