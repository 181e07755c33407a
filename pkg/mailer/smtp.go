package mailer

import (
	"context"
	"fmt"
	"time"

	"chat-server/config"

	"github.com/wneessen/go-mail"
)

// SMTPTransport 通过SMTP投递邮件
type SMTPTransport struct {
	client   *mail.Client
	from     string
	fromName string
}

// NewSMTPTransport 创建SMTP投递
func NewSMTPTransport(cfg config.MailConfig) (*SMTPTransport, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建SMTP客户端失败: %w", err)
	}
	return &SMTPTransport{client: client, from: cfg.From, fromName: cfg.FromName}, nil
}

// buildMsg 组装MIME邮件
func (t *SMTPTransport) buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if t.fromName != "" {
		if err := m.FromFormat(t.fromName, t.from); err != nil {
			return nil, fmt.Errorf("发件人地址无效: %w", err)
		}
	} else if err := m.From(t.from); err != nil {
		return nil, fmt.Errorf("发件人地址无效: %w", err)
	}
	if err := m.AddToFormat(msg.To.Username, msg.To.Email); err != nil {
		return nil, fmt.Errorf("收件人地址无效: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m, err := t.buildMsg(msg)
	if err != nil {
		return err
	}
	return t.client.DialAndSendWithContext(ctx, m)
}
