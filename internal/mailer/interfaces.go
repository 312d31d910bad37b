package mailer

type Service interface {
	SendVerificationEmail(toEmail, toName, verifyURL, token string) error
	SendRequestAcceptedEmail(toEmail, toName, donorName, donorPhone string) error
	SendEmergencyBroadcastEmail(toEmail, toName, bloodType, hospitalName, message string) error
}
