package plan

import (
	"fmt"
	"regexp"
	"strconv"
)

// legacyGroupPlanCode matches the fixed-size group plan codes that predate
// flexible licensing.
var legacyGroupPlanCode = regexp.MustCompile(
	`^group_(collaborator|professional)_(2|3|4|5|10|20|50)_(educational|enterprise)$`)

// LegacyGroupPlan is a parsed legacy group plan code.
type LegacyGroupPlan struct {
	Tier  string
	Size  int
	Usage string
}

// ParseLegacyGroupPlanCode parses a legacy fixed-size group plan code.
func ParseLegacyGroupPlanCode(code string) (LegacyGroupPlan, bool) {
	m := legacyGroupPlanCode.FindStringSubmatch(code)
	if m == nil {
		return LegacyGroupPlan{}, false
	}
	size, _ := strconv.Atoi(m[2])
	return LegacyGroupPlan{Tier: m[1], Size: size, Usage: m[3]}, true
}

// GroupPrice is one cell of the group pricing table. Amounts are in cents,
// matching the provider's catalog configuration.
type GroupPrice struct {
	PriceInCents                        int
	AdditionalLicenseLegacyPriceInCents int
}

// Price returns the plan price in currency units.
func (p GroupPrice) Price() float64 { return float64(p.PriceInCents) / 100 }

// AdditionalLicenseLegacyPrice returns the legacy per-seat price in
// currency units.
func (p GroupPrice) AdditionalLicenseLegacyPrice() float64 {
	return float64(p.AdditionalLicenseLegacyPriceInCents) / 100
}

// GroupPricing is the (usage, tier, currency, size) pricing table for
// legacy group plans.
type GroupPricing map[string]map[string]map[string]map[int]GroupPrice

// Lookup returns the price cell for the given coordinates.
func (g GroupPricing) Lookup(usage, tier, currency string, size int) (GroupPrice, error) {
	price, ok := g[usage][tier][currency][size]
	if !ok {
		return GroupPrice{}, fmt.Errorf("%w: %s/%s/%s/%d", ErrPriceNotFound, usage, tier, currency, size)
	}
	return price, nil
}

// UseLegacyPricing decides whether a seat purchase on a legacy group plan
// keeps its grandfathered per-seat price. The stored plan price is compared
// against today's catalog price. Small educational groups are the one
// family where current pricing is cheaper than legacy pricing, so the
// comparison inverts there.
func UseLegacyPricing(storedPlanPrice, catalogPlanPrice float64, usage string, size int) bool {
	if size <= 5 && usage == UsageEducational {
		return catalogPlanPrice < storedPlanPrice
	}
	return catalogPlanPrice > storedPlanPrice
}
