// Package leads maps market regions onto their backing lead tables.
//
// Region lead tables are provisioned outside this engine; the resolver only
// decides which table a campaign draws from. Table names are derived from a
// static allowlist so a region value can never reach SQL as a raw identifier.
package leads

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownRegion = errors.New("no lead table for market region")

const tableSuffix = "_fresh_leads"

// Resolver resolves a market region to its lead table.
type Resolver struct {
	tables map[string]string // normalized region -> table name
}

// NewResolver builds a resolver from the configured region list.
// Regions that do not normalize to a safe identifier are rejected.
func NewResolver(regions []string) (*Resolver, error) {
	tables := make(map[string]string, len(regions))
	for _, region := range regions {
		key := Normalize(region)
		if key == "" {
			return nil, fmt.Errorf("invalid market region %q", region)
		}
		tables[key] = key + tableSuffix
	}
	return &Resolver{tables: tables}, nil
}

// TableFor returns the lead table backing the given market region.
func (r *Resolver) TableFor(region string) (string, error) {
	table, ok := r.tables[Normalize(region)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	return table, nil
}

// Regions returns the normalized region keys the resolver knows about.
func (r *Resolver) Regions() []string {
	keys := make([]string, 0, len(r.tables))
	for k := range r.tables {
		keys = append(keys, k)
	}
	return keys
}

// Normalize lowercases a region name and collapses separators to underscores,
// dropping anything that is not a safe identifier character.
func Normalize(region string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(strings.TrimSpace(region)) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ' || c == '-' || c == '_':
			if b.Len() > 0 && b.String()[b.Len()-1] != '_' {
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
