package render

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/truesoulcoder/crm-admin-sub001/internal/domain"
)

func testLead() domain.Lead {
	return domain.Lead{
		ID:              42,
		ContactName:     "Maria Alvarez",
		ContactEmail:    "maria@example.com",
		PropertyAddress: "114 Elm St",
		PropertyCity:    "Dallas",
		PropertyState:   "TX",
		PropertyPostal:  "75201",
		AssessedTotal:   250000,
	}
}

func testSender() domain.Sender {
	return domain.Sender{Name: "Kyle Brooks", Email: "kyle@truesoul.example"}
}

func TestBuildContext_OfferMath(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	ctx := BuildContext(testLead(), testSender(), now)

	// 250000 * 0.70 = 175000; EMD 1% = 1750.
	if ctx.OfferPrice != "$175,000" {
		t.Errorf("OfferPrice = %q, want $175,000", ctx.OfferPrice)
	}
	if ctx.EarnestMoney != "$1,750" {
		t.Errorf("EarnestMoney = %q, want $1,750", ctx.EarnestMoney)
	}
	if ctx.LetterDate != "August 31, 2026" {
		t.Errorf("LetterDate = %q", ctx.LetterDate)
	}
	if ctx.ClosingDate != "September 30, 2026" {
		t.Errorf("ClosingDate = %q, want today+30d", ctx.ClosingDate)
	}
}

func TestBuildContext_EarnestFloor(t *testing.T) {
	lead := testLead()
	lead.AssessedTotal = 50000 // 1% of offer would be $350
	ctx := BuildContext(lead, testSender(), time.Now())

	if ctx.EarnestMoney != "$1,000" {
		t.Errorf("EarnestMoney = %q, want floor $1,000", ctx.EarnestMoney)
	}
}

func TestRender(t *testing.T) {
	ctx := BuildContext(testLead(), testSender(), time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))

	out, err := Render("subject", "Offer for {{.PropertyAddress}}, {{.PropertyCity}}", ctx)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Offer for 114 Elm St, Dallas" {
		t.Errorf("out = %q", out)
	}
}

func TestRender_UnknownToken(t *testing.T) {
	_, err := Render("body", "Hello {{.NoSuchField}}", Context{})
	if err == nil {
		t.Error("Render should fail on unknown token")
	}
}

func TestRender_BadSyntax(t *testing.T) {
	_, err := Render("body", "Hello {{.Oops", Context{})
	if err == nil {
		t.Error("Render should fail on unterminated action")
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "$0"},
		{100, "$1"},
		{175000_00, "$175,000"},
		{1234567_00, "$1,234,567"},
		{999_00, "$999"},
		{1000_00, "$1,000"},
	}
	for _, tt := range tests {
		if got := FormatUSD(tt.cents); got != tt.want {
			t.Errorf("FormatUSD(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("a", 300)
	if got := Preview(long, 256); len(got) != 256 {
		t.Errorf("Preview length = %d, want 256", len(got))
	}
	if got := Preview("  short  ", 256); got != "short" {
		t.Errorf("Preview = %q, want trimmed", got)
	}
}

func TestPreviewKeepsRunesWhole(t *testing.T) {
	// Three-byte runes straddle the cut at most offsets.
	body := strings.Repeat("€", 10)
	for max := 1; max < len(body); max++ {
		got := Preview(body, max)
		if !utf8.ValidString(got) {
			t.Fatalf("Preview(%d) = %q splits a rune", max, got)
		}
		if len(got) > max {
			t.Fatalf("Preview(%d) returned %d bytes", max, len(got))
		}
	}
}
