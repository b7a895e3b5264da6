package services

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/captainzonks/GeneGnome/models"
)

type EmailService struct {
	Config *models.Config
	dialer *gomail.Dialer
}

func NewEmailService(cfg *models.Config) *EmailService {
	return &EmailService{
		Config: cfg,
		dialer: gomail.NewDialer(cfg.Smtp.Host, cfg.Smtp.Port, cfg.Smtp.Username, cfg.Smtp.Password),
	}
}

// SendDownloadCredentials mails the one-time download link, token and
// password after a job completes. The password is never persisted, so
// this email is the only copy.
func (es *EmailService) SendDownloadCredentials(to string, jobID string, token string, password string, expiresAt time.Time) error {
	downloadURL := fmt.Sprintf("%s/download/%s", es.Config.Api.Url, token)

	body := fmt.Sprintf(
		"Your genome merge job %s has finished.\r\n\r\n"+
			"Download: %s\r\n"+
			"Password: %s\r\n\r\n"+
			"The link expires at %s and allows a limited number of attempts.\r\n"+
			"All uploaded and generated data is deleted after expiry.\r\n",
		jobID, downloadURL, password, expiresAt.UTC().Format(time.RFC1123))

	message := gomail.NewMessage()
	message.SetHeader("From", es.Config.Smtp.From)
	message.SetHeader("To", to)
	message.SetHeader("Subject", "Your genome results are ready")
	message.SetBody("text/plain", body)

	return es.dialer.DialAndSend(message)
}

// SendFailureNotice tells the user their job failed, without leaking
// internals: the message is the short human-readable kind only.
func (es *EmailService) SendFailureNotice(to string, jobID string, reason string) error {
	message := gomail.NewMessage()
	message.SetHeader("From", es.Config.Smtp.From)
	message.SetHeader("To", to)
	message.SetHeader("Subject", "Your genome merge job failed")
	message.SetBody("text/plain", fmt.Sprintf(
		"Job %s could not be completed: %s\r\n\r\nYour uploaded files have been deleted.\r\n",
		jobID, reason))

	return es.dialer.DialAndSend(message)
}
