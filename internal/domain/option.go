package domain

import (
	"fmt"
	"strings"
)

// Category partitions canonical options into the two scoring tables.
type Category string

const (
	CategorySay     Category = "say"
	CategoryMention Category = "mention"
)

// Categories lists every category in the order used for lookups and display.
var Categories = []Category{CategorySay, CategoryMention}

// ParseCategory maps a case-insensitive label to a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategorySay:
		return CategorySay, nil
	case CategoryMention:
		return CategoryMention, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// CanonicalOption is one entry of the fixed scoring table.
type CanonicalOption struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	PointValue int      `json:"point_value"`
}

// AliasEntry maps a display label to a canonical option name.
type AliasEntry struct {
	DisplayLabel  string `json:"display_label"`
	CanonicalName string `json:"canonical_name"`
}

// TitleMap is the linker's lookup: category -> venue display title -> instrument id.
type TitleMap map[Category]map[string]string

// Lookup returns the instrument id for title under category, or "".
func (m TitleMap) Lookup(category Category, title string) string {
	if m == nil {
		return ""
	}
	return m[category][title]
}

// Clone returns a deep copy so callers cannot mutate a cached map.
func (m TitleMap) Clone() TitleMap {
	out := make(TitleMap, len(m))
	for cat, titles := range m {
		inner := make(map[string]string, len(titles))
		for k, v := range titles {
			inner[k] = v
		}
		out[cat] = inner
	}
	return out
}

// Empty reports whether no category holds any title.
func (m TitleMap) Empty() bool {
	for _, titles := range m {
		if len(titles) > 0 {
			return false
		}
	}
	return true
}
