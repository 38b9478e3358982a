package users

import (
	"saas-starter/internal/domain/plans"
	"saas-starter/internal/domain/subscriptions"
	"saas-starter/internal/domain/users"
)

func BuildUserDTO(u *users.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		AuthProvider: u.AuthProvider,
		IsVerified:   u.IsVerified,
	}
}

func BuildPlanDTO(p *plans.Plan) *PlanDTO {
	if p == nil {
		return nil
	}
	return &PlanDTO{
		ID:            p.ID,
		Name:          p.Name,
		Interval:      p.Interval,
		UnitAmount:    p.UnitAmount,
		Currency:      p.Currency,
		StripePriceID: p.StripePriceID,
	}
}

// BuildSubscriptionDTO returns nil for a missing row and for the placeholder
// row written before checkout completes.
func BuildSubscriptionDTO(s *subscriptions.Subscription) *SubscriptionDTO {
	if s == nil || s.StripeSubscriptionID == nil {
		return nil
	}
	return &SubscriptionDTO{
		Status:               string(s.Status),
		PriceID:              s.PriceID,
		CurrentPeriodStart:   s.CurrentPeriodStart,
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
		CancelAtPeriodEnd:    s.CancelAtPeriodEnd,
		CanceledAt:           s.CanceledAt,
		StripeSubscriptionID: s.StripeSubscriptionID,
	}
}
