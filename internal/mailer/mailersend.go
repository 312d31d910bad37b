package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendVerificationEmail(toEmail, toName, verifyURL, token string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Verify your blood donation account"
	html := fmt.Sprintf(`
		<h2>Welcome!</h2>
		<p>Hi %s,</p>
		<p>Please verify your email address by clicking the link below:</p>
		<p><a href="%s">Verify Email</a></p>
		<p>Or use this verification code: <strong>%s</strong></p>
		<p>This link will expire in 2 hours.</p>
		<p>If you didn't create an account with us, please ignore this email.</p>
	`, toName, verifyURL, token)

	text := fmt.Sprintf("Please verify your email by clicking this link: %s\n\nOr use this verification code: %s", verifyURL, token)

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) SendRequestAcceptedEmail(toEmail, toName, donorName, donorPhone string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your donation request was accepted"
	html := fmt.Sprintf(`
		<h2>Good news, %s!</h2>
		<p><strong>%s</strong> accepted your donation request.</p>
		<p>You can reach them at <strong>%s</strong> to arrange the donation.</p>
	`, toName, donorName, donorPhone)

	text := fmt.Sprintf("%s accepted your donation request. You can reach them at %s.", donorName, donorPhone)

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) SendEmergencyBroadcastEmail(toEmail, toName, bloodType, hospitalName, message string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := fmt.Sprintf("Emergency: %s blood needed", bloodType)
	html := fmt.Sprintf(`
		<h2>Emergency blood request</h2>
		<p>Hi %s,</p>
		<p><strong>%s</strong> urgently needs <strong>%s</strong> blood.</p>
		<p>%s</p>
		<p>Please open your pending requests to respond.</p>
	`, toName, hospitalName, bloodType, message)

	text := fmt.Sprintf("%s urgently needs %s blood. %s\nPlease open your pending requests to respond.", hospitalName, bloodType, message)

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) sendEmail(toEmail, toName, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
