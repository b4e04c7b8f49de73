package utils

import (
	"github.com/wneessen/go-mail"

	"wallet_shop/internal/config"
)

// MailConfig est la configuration SMTP. Host vide désactive l'envoi.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

var mailConfig MailConfig

// InitMailer fixe la configuration SMTP utilisée par SendEmail
func InitMailer(cfg config.Config) {
	mailConfig = MailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

// BuildMessage construit le mail HTML sans l'envoyer
func BuildMessage(from, to, subject, htmlBody string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, err
	}
	if err := msg.To(to); err != nil {
		return nil, err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}

// SendEmail envoie un mail HTML. Sans SMTP_HOST, le mail est seulement journalisé.
func SendEmail(to, subject, htmlBody string) error {
	if to == "" {
		return nil
	}
	msg, err := BuildMessage(mailConfig.From, to, subject, htmlBody)
	if err != nil {
		return err
	}

	if mailConfig.Host == "" {
		Log.Infof("📭 SMTP non configuré, email non envoyé à %s: %s", to, subject)
		return nil
	}

	opts := []mail.Option{
		mail.WithPort(mailConfig.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if mailConfig.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(mailConfig.Username),
			mail.WithPassword(mailConfig.Password),
		)
	}
	client, err := mail.NewClient(mailConfig.Host, opts...)
	if err != nil {
		return err
	}

	Log.Infof("📤 Envoi de l'e-mail à %s", to)
	return client.DialAndSend(msg)
}
