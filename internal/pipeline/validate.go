package pipeline

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
)

// Violation is a single lead field that failed validation.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Violations aggregates every failed check so the send log shows the
// full list, not just the first.
type Violations []Violation

func (vs Violations) Error() string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return "lead validation failed: " + strings.Join(parts, "; ")
}

// ValidateLead checks every field the letter and the send depend on.
func ValidateLead(lead *domain.Lead) error {
	var vs Violations
	if strings.TrimSpace(lead.ContactName) == "" {
		vs = append(vs, Violation{Field: "contact_name", Message: "missing"})
	}
	if strings.TrimSpace(lead.ContactEmail) == "" {
		vs = append(vs, Violation{Field: "contact_email", Message: "missing"})
	} else if _, err := mail.ParseAddress(lead.ContactEmail); err != nil {
		vs = append(vs, Violation{Field: "contact_email", Message: "not a valid address"})
	}
	if strings.TrimSpace(lead.PropertyAddress) == "" {
		vs = append(vs, Violation{Field: "property_address", Message: "missing"})
	}
	if strings.TrimSpace(lead.PropertyCity) == "" {
		vs = append(vs, Violation{Field: "property_city", Message: "missing"})
	}
	if strings.TrimSpace(lead.PropertyState) == "" {
		vs = append(vs, Violation{Field: "property_state", Message: "missing"})
	}
	if strings.TrimSpace(lead.PropertyPostal) == "" {
		vs = append(vs, Violation{Field: "property_postal_code", Message: "missing"})
	}
	if lead.AssessedTotal <= 0 {
		vs = append(vs, Violation{Field: "assessed_total", Message: "must be positive"})
	}
	if len(vs) > 0 {
		return vs
	}
	return nil
}
