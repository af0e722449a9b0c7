// Package render fills email and document templates with per-lead context.
// Rendering is pure string work; all money and date derivation happens here
// so the pipeline and preflight produce identical output for the same lead.
package render

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
)

// Offer terms. Offer price is a fixed fraction of the county-assessed total;
// earnest money is a fraction of the offer with a floor.
const (
	offerRatio        = 0.70
	earnestRatio      = 0.01
	earnestFloorCents = 1000 * 100
)

const closingDays = 30

// Context is the data a template renders against. Missing tokens are a
// render error, not silent empties.
type Context struct {
	ContactName string

	PropertyAddress string
	PropertyCity    string
	PropertyState   string
	PropertyPostal  string

	OfferPrice   string
	EarnestMoney string

	LetterDate  string
	ClosingDate string

	SenderName  string
	SenderEmail string
}

// BuildContext derives the full render context for one lead and sender.
func BuildContext(lead domain.Lead, sender domain.Sender, now time.Time) Context {
	offerCents := int64(math.Round(lead.AssessedTotal * offerRatio * 100))
	earnestCents := int64(math.Round(float64(offerCents) * earnestRatio))
	if earnestCents < earnestFloorCents {
		earnestCents = earnestFloorCents
	}

	return Context{
		ContactName:     lead.ContactName,
		PropertyAddress: lead.PropertyAddress,
		PropertyCity:    lead.PropertyCity,
		PropertyState:   lead.PropertyState,
		PropertyPostal:  lead.PropertyPostal,
		OfferPrice:      FormatUSD(offerCents),
		EarnestMoney:    FormatUSD(earnestCents),
		LetterDate:      now.Format("January 2, 2006"),
		ClosingDate:     now.AddDate(0, 0, closingDays).Format("January 2, 2006"),
		SenderName:      sender.Name,
		SenderEmail:     sender.Email,
	}
}

// Render executes one template body against the context.
// name is only used in error messages.
func Render(name, body string, ctx Context) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, ctx); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return b.String(), nil
}

// FormatUSD renders whole-dollar cents as "$1,234,567".
func FormatUSD(cents int64) string {
	dollars := cents / 100
	neg := dollars < 0
	if neg {
		dollars = -dollars
	}

	s := fmt.Sprintf("%d", dollars)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// Preview truncates a rendered body for the send log.
func Preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	// Back up so a multi-byte rune is never split at the cut.
	cut := max
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
