// Package policy decides whether a user may create listings, and when a
// user's trust tier should change. Both decisions are pure functions over a
// user snapshot; callers apply the results.
package policy

import (
	"time"

	"github.com/dormline/dormline/internal/users"
)

// Rejection reasons carried on a rate-limit result. Callers render these as
// human-readable messages.
const (
	ReasonDailyLimit  = "daily_limit"
	ReasonActiveLimit = "active_limit"
)

// Limits is the per-tier allowance table.
type Limits struct {
	DailyMax  int
	ActiveMax int
}

// limitsByTrust is compiled-in; whether these should be hot-reloadable policy
// data is an open product question.
var limitsByTrust = map[users.TrustLevel]Limits{
	users.TrustBasic:        {DailyMax: 3, ActiveMax: 10},
	users.TrustTrusted:      {DailyMax: 5, ActiveMax: 15},
	users.TrustShadowBanned: {DailyMax: 0, ActiveMax: 0},
}

// Trust transition thresholds.
const (
	PromotionPublishedMin = 5
	PromotionWindow       = 30 * 24 * time.Hour
	DemotionSpamMin       = 3
)

// RateResult is the structured outcome of a rate-limit check. It is always
// returned by value; a rejection is expressed through Allowed and Reason,
// never through an error.
type RateResult struct {
	Allowed     bool
	Reason      string
	DailyCount  int
	DailyMax    int
	ActiveCount int
	ActiveMax   int
}

// LimitsFor returns the allowance table entry for a trust tier. Unknown
// tiers get the basic allowance.
func LimitsFor(level users.TrustLevel) Limits {
	if l, ok := limitsByTrust[level]; ok {
		return l
	}
	return limitsByTrust[users.TrustBasic]
}

// CheckRateLimit decides whether the user may create a new listing right now.
// activeCount is the user's number of READY/PUBLISHED unexpired listings.
// The daily counter is evaluated against the start of the current calendar
// day: a LastListingDate before today's midnight means an effective count of
// zero regardless of the stored value.
func CheckRateLimit(user users.User, activeCount int, now time.Time) RateResult {
	limits := LimitsFor(user.TrustLevel)
	daily := EffectiveDailyCount(user, now)
	result := RateResult{
		Allowed:     true,
		DailyCount:  daily,
		DailyMax:    limits.DailyMax,
		ActiveCount: activeCount,
		ActiveMax:   limits.ActiveMax,
	}
	if daily >= limits.DailyMax {
		result.Allowed = false
		result.Reason = ReasonDailyLimit
		return result
	}
	if activeCount >= limits.ActiveMax {
		result.Allowed = false
		result.Reason = ReasonActiveLimit
		return result
	}
	return result
}

// EffectiveDailyCount returns the listing count that applies to today,
// treating any stored count from an earlier day as zero.
func EffectiveDailyCount(user users.User, now time.Time) int {
	if user.LastListingDate.IsZero() {
		return 0
	}
	y1, m1, d1 := user.LastListingDate.Date()
	y2, m2, d2 := now.Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		return 0
	}
	return user.DailyListingCount
}

// EvaluateTrust returns the tier the user should hold given their recent
// record. publishedInWindow is the number of listings published within
// PromotionWindow of now. SHADOW_BANNED is sticky: there is no automatic
// un-banning path.
func EvaluateTrust(user users.User, publishedInWindow int) users.TrustLevel {
	if user.SpamAttempts >= DemotionSpamMin {
		return users.TrustShadowBanned
	}
	if user.TrustLevel == users.TrustShadowBanned {
		return users.TrustShadowBanned
	}
	if user.TrustLevel == users.TrustBasic &&
		publishedInWindow >= PromotionPublishedMin &&
		user.SpamAttempts == 0 {
		return users.TrustTrusted
	}
	return user.TrustLevel
}
