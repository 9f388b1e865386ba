package promos

import (
	"strings"
	"time"

	"zona-pedidos/internal/apperr"
)

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckRedeemable validates the code's window, flag and usage cap at now.
func CheckRedeemable(p *PromoCode, now time.Time) error {
	if p == nil || !p.Active {
		return apperr.Validation("coupon_invalid", "Invalid promo code")
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return apperr.Validation("coupon_not_started", "Promo code is not valid yet")
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return apperr.Validation("coupon_expired", "Promo code has expired")
	}
	if p.MaxUses != nil && p.UsedCount >= *p.MaxUses {
		return apperr.Validation("coupon_exhausted", "Promo code has reached its usage limit")
	}
	if p.Kind == KindTrialDays && p.TrialDays <= 0 {
		return apperr.Validation("coupon_invalid", "Invalid promo code")
	}
	return nil
}
