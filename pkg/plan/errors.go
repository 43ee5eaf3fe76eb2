package plan

import "errors"

var (
	ErrPlanNotFound  = errors.New("plan not found in catalog")
	ErrNotGroupPlan  = errors.New("plan is not a group plan")
	ErrNoHigherTier  = errors.New("plan is already at the top tier")
	ErrPriceNotFound = errors.New("no group price for the given parameters")
)
