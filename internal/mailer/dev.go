package mailer

import (
	"github.com/Manish-basnet10/Blood-Donation/pkg/logger"
)

// DevMailer logs emails instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendVerificationEmail(toEmail, toName, verifyURL, token string) error {
	logger.Info("[DEV MAIL] Verification Email",
		"to", toEmail,
		"name", toName,
		"verify_url", verifyURL,
		"token", token,
	)
	return nil
}

func (d *DevMailer) SendRequestAcceptedEmail(toEmail, toName, donorName, donorPhone string) error {
	logger.Info("[DEV MAIL] Request Accepted Email",
		"to", toEmail,
		"name", toName,
		"donor_name", donorName,
		"donor_phone", donorPhone,
	)
	return nil
}

func (d *DevMailer) SendEmergencyBroadcastEmail(toEmail, toName, bloodType, hospitalName, message string) error {
	logger.Info("[DEV MAIL] Emergency Broadcast Email",
		"to", toEmail,
		"name", toName,
		"blood_type", bloodType,
		"hospital", hospitalName,
		"message", message,
	)
	return nil
}
