package domain

import "strings"

// DefaultServiceCategories are sold without stock accounting.
var DefaultServiceCategories = []string{"Consultations", "Analyses"}

// CategoryPolicy decides the default tracks_stock value for a category when the
// client does not set it explicitly.
type CategoryPolicy struct {
	service map[string]struct{}
}

func NewCategoryPolicy(serviceCategories ...string) CategoryPolicy {
	p := CategoryPolicy{service: make(map[string]struct{}, len(serviceCategories))}
	for _, c := range serviceCategories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			p.service[c] = struct{}{}
		}
	}
	return p
}

func (p CategoryPolicy) IsService(category string) bool {
	_, ok := p.service[strings.ToLower(strings.TrimSpace(category))]
	return ok
}

func (p CategoryPolicy) TracksStock(category string) bool {
	return !p.IsService(category)
}
