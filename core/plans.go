package core

import "fmt"

// UnlimitedRemaining is the remaining-quota value reported for unlimited plans.
const UnlimitedRemaining int64 = -1

// Plan describes a subscription tier and its monthly ingestion ceiling.
type Plan struct {
	Name      string
	Limit     int64
	Unlimited bool
}

// The subscription catalog. Limits are receipts per cycle.
var (
	PlanFree       = Plan{Name: "free", Limit: 10}
	PlanPremium    = Plan{Name: "premium", Limit: 100}
	PlanEnterprise = Plan{Name: "enterprise", Limit: 1000}
	PlanUnlimited  = Plan{Name: "unlimited", Unlimited: true}
)

var planCatalog = []Plan{PlanFree, PlanPremium, PlanEnterprise, PlanUnlimited}

// Plans returns the subscription catalog in ascending order of capacity.
func Plans() []Plan {
	out := make([]Plan, len(planCatalog))
	copy(out, planCatalog)
	return out
}

// PlanByName looks up a plan from the catalog.
func PlanByName(name string) (Plan, error) {
	for _, p := range planCatalog {
		if p.Name == name {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, name)
}

// NewSubscription creates an active subscription on the given plan.
func NewSubscription(plan Plan) Subscription {
	return Subscription{
		Plan:   plan.Name,
		Status: SubscriptionActive,
		Limit:  plan.Limit,
	}
}
