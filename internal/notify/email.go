package notify

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/model"
)

// EmailConfig holds SMTP settings for the email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailChannel delivers notifications as plain emails.
type EmailChannel struct {
	logger *zap.Logger
	config EmailConfig
}

// NewEmailChannel creates an email delivery channel.
func NewEmailChannel(logger *zap.Logger, config EmailConfig) *EmailChannel {
	return &EmailChannel{
		logger: logger.Named("email"),
		config: config,
	}
}

// Send implements Channel.Send
func (c *EmailChannel) Send(notification *model.Notification) error {
	if len(c.config.To) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	auth := smtp.PlainAuth("",
		c.config.Username,
		c.config.Password,
		c.config.Host)

	subject, body := renderEmail(notification)
	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n",
		c.config.From,
		c.config.To[0],
		subject,
		body)

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	if err := smtp.SendMail(addr, auth, c.config.From, c.config.To, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Info("Sent email notification",
		zap.String("task_name", notification.TaskName),
		zap.String("type", string(notification.Type)))
	return nil
}

func renderEmail(notification *model.Notification) (subject, body string) {
	switch notification.Type {
	case model.NotificationTypeReminder:
		subject = fmt.Sprintf("Reminder: %s is still not done", notification.TaskName)
		body = fmt.Sprintf("%s was scheduled at %s and has not been completed yet (reminder #%d).",
			notification.TaskName, notification.ScheduledTime, notification.ReminderNumber)
	default:
		subject = fmt.Sprintf("Time for %s", notification.TaskName)
		body = fmt.Sprintf("It's %s - time for %s.", notification.ScheduledTime, notification.TaskName)
	}
	return subject, body
}

var _ Channel = (*EmailChannel)(nil)
