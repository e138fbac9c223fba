package server

import (
	"time"

	"github.com/poiesic/expensit/core"
)

// tenantView is the tenant shape returned by the API. The password hash
// never leaves the server.
type tenantView struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	Limit     int64     `json:"limit"`
	Used      int64     `json:"used"`
	Remaining int64     `json:"remaining"`
	CreatedAt time.Time `json:"created_at"`
}

func viewTenant(tenant *core.Tenant) tenantView {
	return tenantView{
		ID:        uint64(tenant.Id),
		Email:     tenant.Email,
		Role:      tenant.Role.String(),
		Plan:      tenant.Subscription.Plan,
		Status:    tenant.Subscription.Status.String(),
		Limit:     tenant.Subscription.Limit,
		Used:      tenant.Subscription.Used,
		Remaining: tenant.Subscription.Remaining(),
		CreatedAt: tenant.CreatedAt,
	}
}

// recordView is the record shape returned by the API. Amounts are
// decimal strings; floats would corrupt them.
type recordView struct {
	ID         uint64    `json:"id"`
	Date       string    `json:"date"`
	VendorName string    `json:"vendor_name"`
	Amount     string    `json:"amount"`
	Category   string    `json:"category"`
	ImageRef   string    `json:"image_ref,omitempty"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func viewRecord(record *core.Record) recordView {
	return recordView{
		ID:         uint64(record.Id),
		Date:       record.Date,
		VendorName: record.VendorName,
		Amount:     record.Amount.String(),
		Category:   record.Category,
		ImageRef:   record.ImageRef,
		Source:     record.Source.String(),
		Status:     record.Status.String(),
		CreatedAt:  record.CreatedAt,
	}
}

func viewRecords(records []*core.Record) []recordView {
	views := make([]recordView, len(records))
	for i, record := range records {
		views[i] = viewRecord(record)
	}
	return views
}

type planView struct {
	Name      string `json:"name"`
	Limit     int64  `json:"limit"`
	Unlimited bool   `json:"unlimited"`
}

func viewPlans(plans []core.Plan) []planView {
	views := make([]planView, len(plans))
	for i, plan := range plans {
		views[i] = planView{Name: plan.Name, Limit: plan.Limit, Unlimited: plan.Unlimited}
	}
	return views
}
