package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendDeadlineReminder(toEmail, courseName, title, dueDate string) error
	SendSyncDigest(toEmail, userName string, newMaterials int) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	clientURL   string
}

func NewEmailService(host string, port int, username, password, senderEmail, clientURL string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		clientURL:   clientURL,
	}
}

func (s *emailService) SendDeadlineReminder(toEmail, courseName, title, dueDate string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Upcoming deadline: %s", title))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Deadline approaching</h2>
			<p><strong>%s</strong> for <strong>%s</strong> is due on:</p>
			<h1 style="color: #E65100;">%s</h1>
			<p><a href="%s/dashboard" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Open your dashboard</a></p>
		</div>
	`, title, courseName, dueDate, s.clientURL)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send deadline reminder to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Deadline reminder sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendSyncDigest(toEmail, userName string, newMaterials int) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your academic workspace is up to date")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Hi %s,</h2>
			<p>We just finished syncing your courses. <strong>%d new materials</strong> were indexed and are ready to ask about.</p>
			<p><a href="%s/chat" style="background-color: #4CAF50; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Start a conversation</a></p>
		</div>
	`, userName, newMaterials, s.clientURL)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send sync digest to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Sync digest sent to %s\n", toEmail)
	return nil
}
