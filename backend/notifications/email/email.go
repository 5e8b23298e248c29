// Package email sends level-up congratulation emails over SMTP.
package email

import (
	"fmt"
	"net/smtp"
)

// Sender holds the SMTP connection details for the account the
// congratulation emails are sent from.
type Sender struct {
	smtpServer string
	auth       smtp.Auth
	fromEmail  string
}

// NewSender configures a Sender for the given Gmail account and verifies the
// SMTP server is reachable.
func NewSender(sender, password string) (*Sender, error) {
	s := &Sender{
		smtpServer: "smtp.gmail.com:587",
		fromEmail:  sender,
		auth: smtp.PlainAuth(
			"",
			sender,
			password,
			"smtp.gmail.com",
		),
	}

	c, err := smtp.Dial(s.smtpServer)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the SMTP server: %v", err)
	}

	if err := c.Close(); err != nil {
		return nil, fmt.Errorf("cannot close the SMTP connection: %v", err)
	}

	return s, nil
}

// SendLevelUp emails the user that they reached the given level.
func (s *Sender) SendLevelUp(to string, level int) error {
	headers := make(map[string]string)
	headers["From"] = s.fromEmail
	headers["To"] = to
	headers["Subject"] = fmt.Sprintf("You have reached level %d", level)
	headers["MIME-version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=\"UTF-8\""

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}

	body := fmt.Sprintf(`
	<html>
		<body>
			<div>
				<h1>ARISE</h1>
				<p>Your daily training paid off: you are now <strong>level %d</strong>.</p>
				<p>You have been granted <strong>3 ability points</strong>. Spend them well.</p>
			</div>
		</body>
	</html>
	`, level)
	message += "\r\n" + body

	err := smtp.SendMail(
		s.smtpServer,
		s.auth,
		s.fromEmail,
		[]string{to},
		[]byte(message),
	)

	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
