// Package mail composes MIME messages and submits them through an
// impersonated mailbox.
package mail

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"gopkg.in/gomail.v2"
)

// DefaultSendTimeout bounds one provider submission.
const DefaultSendTimeout = 30 * time.Second

// Attachment is a file carried by an outbound email.
type Attachment struct {
	Name     string
	MIMEType string
	Content  []byte
}

// OutboundEmail is one fully rendered message ready for submission.
type OutboundEmail struct {
	FromName  string
	FromEmail string
	To        string

	Subject  string
	HTMLBody string

	Attachment *Attachment

	// InlineLogo, when set, is embedded and referenced from the HTML body
	// as cid:logo.
	InlineLogo []byte
}

// BuildMIME renders the message to raw RFC 822 bytes.
func BuildMIME(email OutboundEmail) ([]byte, error) {
	if email.To == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	if email.FromEmail == "" {
		return nil, fmt.Errorf("from address is required")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", email.FromEmail, email.FromName)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetBody("text/html", email.HTMLBody)

	if email.InlineLogo != nil {
		m.Embed("logo.png", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(email.InlineLogo)
			return err
		}))
	}

	if att := email.Attachment; att != nil {
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(att.Content)
				return err
			}),
		}
		if att.MIMEType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {att.MIMEType},
			}))
		}
		m.Attach(att.Name, settings...)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write mime: %w", err)
	}
	return buf.Bytes(), nil
}
