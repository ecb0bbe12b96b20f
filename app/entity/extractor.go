package entity

import (
	"regexp"
	"sort"
)

type Kind string

const (
	KindStandard   Kind = "standard"
	KindPercentage Kind = "percentage"
	KindCurrency   Kind = "currency"
	KindVersion    Kind = "version"
)

type pattern struct {
	kind Kind
	expr *regexp.Regexp
}

var patterns = []pattern{
	{KindStandard, regexp.MustCompile(`\b(?:EIP|ERC)-\d+\b`)},
	{KindPercentage, regexp.MustCompile(`\d+(?:\.\d+)?%`)},
	{KindCurrency, regexp.MustCompile(`\$\d+(?:,\d{3})*(?:\.\d+)?[KMBT]?`)},
	{KindVersion, regexp.MustCompile(`\bv?\d+\.\d+\.\d+(?:-[0-9A-Za-z.]+)?\b`)},
}

var criticalExpr = regexp.MustCompile(`^(?:EIP|ERC)-\d+$`)

// Extract returns the unique entities found in text, sorted.
func Extract(text string) []string {
	seen := make(map[string]struct{})
	for _, p := range patterns {
		for _, match := range p.expr.FindAllString(text, -1) {
			seen[match] = struct{}{}
		}
	}

	entities := make([]string, 0, len(seen))
	for e := range seen {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	return entities
}

// IsCritical reports whether the entity is a standards identifier.
func IsCritical(entity string) bool {
	return criticalExpr.MatchString(entity)
}

func KindOf(entity string) (Kind, bool) {
	for _, p := range patterns {
		if loc := p.expr.FindStringIndex(entity); loc != nil && loc[0] == 0 && loc[1] == len(entity) {
			return p.kind, true
		}
	}
	return "", false
}
