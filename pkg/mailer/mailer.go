package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"chat-server/config"
	"chat-server/pkg/logger"

	"go.uber.org/zap"
)

// Recipient 收件人
type Recipient struct {
	Email    string
	Username string
}

// Message 一封已渲染好的邮件
type Message struct {
	To      Recipient
	Subject string
	HTML    string
}

// Transport 邮件投递方式
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Sender 账号相关通知
type Sender interface {
	SendVerification(ctx context.Context, to Recipient, token string) error
	SendPasswordReset(ctx context.Context, to Recipient, token string) error
}

// Mailer 渲染模板并交给 Transport 投递
type Mailer struct {
	transport Transport
	clientURL string
}

// New 根据配置创建Mailer：启用时走SMTP，否则只记录日志
func New(cfg config.MailConfig, clientURL string) (*Mailer, error) {
	var transport Transport = LogTransport{}
	if cfg.Enabled {
		smtp, err := NewSMTPTransport(cfg)
		if err != nil {
			return nil, err
		}
		transport = smtp
	}
	return NewWithTransport(transport, clientURL), nil
}

// NewWithTransport 使用指定 Transport 创建Mailer
func NewWithTransport(transport Transport, clientURL string) *Mailer {
	return &Mailer{transport: transport, clientURL: strings.TrimRight(clientURL, "/")}
}

func (m *Mailer) link(path, token string) string {
	return m.clientURL + path + "?token=" + url.QueryEscape(token)
}

// SendVerification 发送邮箱验证邮件
func (m *Mailer) SendVerification(ctx context.Context, to Recipient, token string) error {
	body, err := render(verificationTemplate, templateData{
		Username: to.Username,
		Link:     m.link("/verify-email", token),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, Message{To: to, Subject: "Verify your email", HTML: body})
}

// SendPasswordReset 发送重置密码邮件
func (m *Mailer) SendPasswordReset(ctx context.Context, to Recipient, token string) error {
	body, err := render(resetTemplate, templateData{
		Username: to.Username,
		Link:     m.link("/reset-password", token),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, Message{To: to, Subject: "Reset your password", HTML: body})
}

func (m *Mailer) send(ctx context.Context, msg Message) error {
	if err := m.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

// LogTransport 不真正发信，只写日志（开发环境）
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, msg Message) error {
	logger.Info("邮件未启用，跳过发送",
		zap.String("to", msg.To.Email),
		zap.String("subject", msg.Subject),
	)
	return nil
}
