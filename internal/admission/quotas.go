package admission

import (
	"time"

	"github.com/snaplink/snaplink/internal/models"
)

// quotaWindow is the fixed window every per-route quota counts within.
const quotaWindow = 15 * time.Minute

// Quotas bundles the four independent per-route quotas. Maxima are read from
// the settings provider on every decision, so a reload takes effect without
// resetting any window.
type Quotas struct {
	General      *Quota
	Auth         *Quota
	LinkCreation *Quota
	Redirect     *Quota
}

func NewQuotas(settings func() models.RateLimitSettings, opts ...QuotaOption) *Quotas {
	return &Quotas{
		General: NewQuota("general", quotaWindow,
			func() int { return settings().GeneralMax }, opts...),
		Auth: NewQuota("auth", quotaWindow,
			func() int { return settings().AuthMax }, opts...),
		LinkCreation: NewQuota("link_creation", quotaWindow,
			func() int { return settings().LinkCreationMax }, opts...),
		Redirect: NewQuota("redirect", quotaWindow,
			func() int { return settings().RedirectMax }, opts...),
	}
}

// Sweep evicts elapsed buckets from every quota.
func (q *Quotas) Sweep() {
	q.General.Sweep()
	q.Auth.Sweep()
	q.LinkCreation.Sweep()
	q.Redirect.Sweep()
}
