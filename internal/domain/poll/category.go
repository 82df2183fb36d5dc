package poll

import "strings"

type Category string

const (
	CategoryGovernance     Category = "governance"
	CategoryEconomy        Category = "economy"
	CategoryEducation      Category = "education"
	CategoryHealth         Category = "health"
	CategoryInfrastructure Category = "infrastructure"
	CategorySecurity       Category = "security"
	CategoryOther          Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryGovernance,
	CategoryEconomy,
	CategoryEducation,
	CategoryHealth,
	CategoryInfrastructure,
	CategorySecurity,
	CategoryOther,
}

// ParseCategory normalizes raw input. Empty input defaults to other.
func ParseCategory(raw string) (Category, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return CategoryOther, true
	}
	for _, c := range Categories {
		if string(c) == raw {
			return c, true
		}
	}
	return "", false
}
