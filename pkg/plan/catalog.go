package plan

import (
	"fmt"
	"strings"
)

// Usage distinguishes the two group pricing families.
const (
	UsageEducational = "educational"
	UsageEnterprise  = "enterprise"
)

// Group plan tiers, cheapest first.
const (
	TierCollaborator = "collaborator"
	TierProfessional = "professional"
)

// Plan is one entry of the local plan catalog. Prices are in the catalog's
// display currency and used only for the term-end decision; the provider
// remains the source of truth for billing amounts.
type Plan struct {
	Code                    string
	Name                    string
	Price                   float64
	Annual                  bool
	Group                   bool
	MembersLimit            int
	MembersLimitAddOn       string
	CanUseFlexibleLicensing bool
}

// Catalog is the immutable set of locally configured plans.
type Catalog struct {
	byCode map[string]Plan
}

// NewCatalog builds a catalog from a plan list. Duplicate codes are an
// error so configuration mistakes surface at startup.
func NewCatalog(plans []Plan) (*Catalog, error) {
	byCode := make(map[string]Plan, len(plans))
	for _, p := range plans {
		if p.Code == "" {
			return nil, fmt.Errorf("plan %q: empty code", p.Name)
		}
		if _, exists := byCode[p.Code]; exists {
			return nil, fmt.Errorf("duplicate plan code %q", p.Code)
		}
		byCode[p.Code] = p
	}
	return &Catalog{byCode: byCode}, nil
}

// Find returns the plan with the given code.
func (c *Catalog) Find(code string) (Plan, error) {
	p, ok := c.byCode[code]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, code)
	}
	return p, nil
}

// IsGroupPlanCode reports whether a plan code belongs to a group plan
// without requiring the code to exist in the catalog.
func IsGroupPlanCode(code string) bool {
	return strings.HasPrefix(code, "group_")
}

// ShouldPlanChangeAtTermEnd decides whether a plan change waits for the end
// of the billing term. Changes during a trial always apply immediately, as
// do upgrades and same-price changes. Only a genuine downgrade waits so the
// user keeps what they already paid for.
func ShouldPlanChangeAtTermEnd(current, next Plan, inTrial bool) bool {
	if inTrial {
		return false
	}
	return next.Price < current.Price
}

// NextTierPlanCode resolves the plan code one tier above the given group
// plan. Flexible-licensing plans map to a fixed next-tier code; legacy
// numbered plans substitute the tier segment of the code.
func NextTierPlanCode(code string) (string, error) {
	if !IsGroupPlanCode(code) {
		return "", fmt.Errorf("%w: %s", ErrNotGroupPlan, code)
	}
	if strings.Contains(code, TierProfessional) {
		return "", fmt.Errorf("%w: %s", ErrNoHigherTier, code)
	}
	if legacy, ok := ParseLegacyGroupPlanCode(code); ok {
		return fmt.Sprintf("group_%s_%d_%s", TierProfessional, legacy.Size, legacy.Usage), nil
	}
	if !strings.Contains(code, TierCollaborator) {
		return "", fmt.Errorf("%w: %s", ErrNotGroupPlan, code)
	}
	return strings.Replace(code, TierCollaborator, TierProfessional, 1), nil
}
