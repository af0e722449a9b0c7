package mail

import (
	"strings"
	"testing"
)

func TestBuildMIME_RequiredFields(t *testing.T) {
	_, err := BuildMIME(OutboundEmail{FromEmail: "a@b.com"})
	if err == nil {
		t.Error("BuildMIME should require a recipient")
	}

	_, err = BuildMIME(OutboundEmail{To: "a@b.com"})
	if err == nil {
		t.Error("BuildMIME should require a from address")
	}
}

func TestBuildMIME_HTMLWithAttachment(t *testing.T) {
	raw, err := BuildMIME(OutboundEmail{
		FromName:  "Kyle Brooks",
		FromEmail: "kyle@truesoul.example",
		To:        "maria@example.com",
		Subject:   "Offer for 114 Elm St",
		HTMLBody:  "<p>Please find our letter of intent attached.</p>",
		Attachment: &Attachment{
			Name:     "letter-of-intent.pdf",
			MIMEType: "application/pdf",
			Content:  []byte("%PDF-1.7 fake"),
		},
	})
	if err != nil {
		t.Fatalf("BuildMIME: %v", err)
	}

	msg := string(raw)
	for _, want := range []string{
		"From: \"Kyle Brooks\" <kyle@truesoul.example>",
		"To: maria@example.com",
		"Subject: Offer for 114 Elm St",
		"Content-Type: multipart/mixed",
		"text/html",
		"letter-of-intent.pdf",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("mime missing %q", want)
		}
	}
}

func TestBuildMIME_InlineLogo(t *testing.T) {
	raw, err := BuildMIME(OutboundEmail{
		FromEmail:  "kyle@truesoul.example",
		To:         "maria@example.com",
		Subject:    "s",
		HTMLBody:   `<img src="cid:logo">`,
		InlineLogo: []byte{0x89, 'P', 'N', 'G'},
	})
	if err != nil {
		t.Fatalf("BuildMIME: %v", err)
	}
	if !strings.Contains(string(raw), "logo.png") {
		t.Error("mime missing embedded logo part")
	}
}
