/*
Package factory provides JSON to Go policy conversion.

PURPOSE:
  Converts JSON tax policy documents into taxation.Policy values. The tax
  authority can change the debt threshold, cutoff hour, default rate or time
  zone by editing a document instead of redeploying.

JSON SCHEMA:
  {
    "id": "lagos-2025",
    "name": "Lagos commercial vehicles",
    "currency": "NGN",
    "default_daily_rate": "150.00",
    "time_zone": "Africa/Lagos",
    "cutoff_hour": 16,
    "debt_days": 7,
    "exemption_overlap": "additive"
  }

  Amounts are strings so they never pass through a float.

DEFAULTS:
  Every omitted field takes its value from taxation.DefaultPolicy(). An
  explicit 0 is honored for cutoff_hour and debt_days (pointer fields), so
  "debt_days": 0 really means "any debt is inactive".

USAGE:
  factory := NewPolicyFactory()
  policy, err := factory.ParsePolicy(jsonString)

  // Render for GET /api/policy or for storage
  doc := factory.ToJSON(policy)

SEE ALSO:
  - taxation/policies.go: Policy type definition
  - config/config.go: TAX_POLICY_FILE
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/hassan3xl/taxation-backend/taxation"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a tax policy.
type PolicyJSON struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Currency         string `json:"currency,omitempty"`
	DefaultDailyRate string `json:"default_daily_rate,omitempty"`
	TimeZone         string `json:"time_zone,omitempty"`
	CutoffHour       *int   `json:"cutoff_hour,omitempty"`
	DebtDays         *int64 `json:"debt_days,omitempty"`
	ExemptionOverlap string `json:"exemption_overlap,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a validated Policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (*taxation.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// LoadFile reads and parses a policy document from disk.
func (f *PolicyFactory) LoadFile(path string) (*taxation.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return f.ParsePolicy(string(data))
}

// FromJSON applies pj over the default policy and validates the result.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (*taxation.Policy, error) {
	policy := taxation.DefaultPolicy()

	if pj.ID != "" {
		policy.ID = pj.ID
	}
	if pj.Name != "" {
		policy.Name = pj.Name
	}
	if pj.Currency != "" {
		policy.Currency = generic.Currency(pj.Currency)
	}
	// Re-tag the default rate so a currency change without a rate stays consistent.
	policy.DefaultDailyRate = generic.NewAmount(policy.DefaultDailyRate.Value, policy.Currency)
	if pj.DefaultDailyRate != "" {
		rate, err := generic.ParseAmount(pj.DefaultDailyRate, policy.Currency)
		if err != nil {
			return nil, &generic.ValidationError{Field: "default_daily_rate", Message: err.Error()}
		}
		policy.DefaultDailyRate = rate
	}
	if pj.TimeZone != "" {
		policy.TimeZone = pj.TimeZone
	}
	if pj.CutoffHour != nil {
		policy.CutoffHour = *pj.CutoffHour
	}
	if pj.DebtDays != nil {
		policy.DebtDays = *pj.DebtDays
	}
	if pj.ExemptionOverlap != "" {
		policy.ExemptionOverlap = taxation.OverlapMode(pj.ExemptionOverlap)
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &policy, nil
}

// ToJSON converts a Policy to PolicyJSON. Every field is written explicitly.
func (f *PolicyFactory) ToJSON(policy *taxation.Policy) PolicyJSON {
	cutoff := policy.CutoffHour
	debtDays := policy.DebtDays
	return PolicyJSON{
		ID:               policy.ID,
		Name:             policy.Name,
		Currency:         string(policy.Currency),
		DefaultDailyRate: policy.DefaultDailyRate.String(),
		TimeZone:         policy.TimeZone,
		CutoffHour:       &cutoff,
		DebtDays:         &debtDays,
		ExemptionOverlap: string(policy.ExemptionOverlap),
	}
}

// Marshal renders a policy as an indented JSON document.
func (f *PolicyFactory) Marshal(policy *taxation.Policy) (string, error) {
	data, err := json.MarshalIndent(f.ToJSON(policy), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
