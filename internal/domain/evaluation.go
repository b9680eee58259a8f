package domain

// SubscriptionPlan is the billing plan as reported by the subscription provider.
type SubscriptionPlan struct {
	Type string `json:"type"`
}

// Subscription is the snapshot of a tenant's billing state attached to a request.
type Subscription struct {
	ID       string           `json:"id,omitempty"`
	TenantID string           `json:"tenant_id,omitempty"`
	Status   string           `json:"status,omitempty"`
	Plan     SubscriptionPlan `json:"plan"`
}

// Principal is the authenticated caller decoded from the bearer token.
type Principal struct {
	ID       string   `json:"id"`
	Email    string   `json:"email,omitempty"`
	TenantID string   `json:"tenant_id,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func (p *Principal) HasRole(role Role) bool {
	return p != nil && HasRole(p.Roles, role)
}

// EvaluationContext is everything the evaluator may consult for one decision.
// PlanLevel, when set, takes precedence over the subscription.
type EvaluationContext struct {
	UserID       string
	TenantID     string
	UserEmail    string
	PlanLevel    PlanLevel
	Subscription *Subscription
}

// PlanFromSubscription maps a billing plan type to a plan level.
func PlanFromSubscription(sub *Subscription) PlanLevel {
	if sub == nil {
		return PlanFree
	}
	switch sub.Plan.Type {
	case "monthly":
		return PlanBasic
	case "yearly":
		return PlanPremium
	case "enterprise", "custom":
		return PlanEnterprise
	default:
		return PlanFree
	}
}

// EffectivePlan is the explicit plan level or the one derived from the subscription.
func (c EvaluationContext) EffectivePlan() PlanLevel {
	if c.PlanLevel != "" {
		return c.PlanLevel
	}
	return PlanFromSubscription(c.Subscription)
}

// RolloutIdentifier is the id used for percentage bucketing: the user, else the tenant.
func (c EvaluationContext) RolloutIdentifier() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.TenantID
}
