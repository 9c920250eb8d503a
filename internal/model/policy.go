package model

// ApplicabilityRule selects which reservations require a guarantee.
type ApplicabilityRule string

const (
	RuleAll          ApplicabilityRule = "all"            // every reservation is guaranteed
	RuleMinPartySize ApplicabilityRule = "min_party_size" // only parties of MinPartySize or more
	RuleWeekendOnly  ApplicabilityRule = "weekend_only"   // only Friday, Saturday and Sunday reservations
)

// GuaranteePolicy is the per-merchant guarantee configuration.  One flat
// record per merchant; sessions snapshot the penalty amount at creation, so
// editing a policy never changes what an existing session may charge.
//
// A policy cannot be effectively enabled unless MerchantSubAccountID is set
// and the processor reports the sub-account as charge-capable; the service
// re-checks capability at creation time rather than trusting a stored flag.
type GuaranteePolicy struct {
	MerchantID            uint64            `json:"merchant_id"`
	Enabled               bool              `json:"enabled"`
	PenaltyCentsPerPerson int64             `json:"penalty_cents_per_person"`
	Currency              string            `json:"currency"`
	CancellationDelayHrs  int               `json:"cancellation_delay_hours"`
	Rule                  ApplicabilityRule `json:"applicability_rule"`
	MinPartySize          int               `json:"min_party_size"`
	MerchantSubAccountID  string            `json:"merchant_sub_account_id,omitempty"`

	// Branding shown on the hosted capture page and in notices.
	BusinessName string `json:"business_name,omitempty"`
	LogoURL      string `json:"logo_url,omitempty"`

	// Notification toggles.  Sends are always best-effort.
	AutoEmailOnCreate     bool `json:"auto_email_on_create"`
	AutoSmsOnCreate       bool `json:"auto_sms_on_create"`
	AutoEmailOnValidation bool `json:"auto_email_on_validation"`
	AutoSmsOnValidation   bool `json:"auto_sms_on_validation"`
}

// Configured reports whether the guarantee can be offered at all: the
// policy is enabled and a processor sub-account is connected.  Whether the
// sub-account can actually charge is a live question answered by the
// processor, not by this record.
func (p *GuaranteePolicy) Configured() bool {
	return p.Enabled && p.MerchantSubAccountID != ""
}
