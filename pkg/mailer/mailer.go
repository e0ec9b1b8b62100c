package mailer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quiz_master_backend/internal/config"
	"quiz_master_backend/pkg/logger"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPSender 通过 SMTP 发送 HTML 邮件，默认配置适配本地 MailHog（无认证、无 TLS）
type SMTPSender struct {
	cfg config.MailConfig
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextHTML, html)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(10 * time.Second),
		mail.WithTLSPolicy(mail.NoTLS),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithTLSPolicy(mail.TLSOpportunistic),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, m)
}

// NoopSender 仅记录日志，邮件未启用时使用
type NoopSender struct{}

func (NoopSender) Send(_ context.Context, to, subject, _ string) error {
	logger.Log.Debug("Mail disabled, skipping", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func New(cfg config.MailConfig) Sender {
	if !cfg.Enabled || cfg.Host == "" {
		return NoopSender{}
	}
	return NewSMTPSender(cfg)
}

// Reloadable 在配置热更新时替换底层 Sender
type Reloadable struct {
	mu     sync.RWMutex
	sender Sender
}

func NewReloadable(cfg config.MailConfig) *Reloadable {
	return &Reloadable{sender: New(cfg)}
}

func (r *Reloadable) Reload(cfg config.MailConfig) {
	r.mu.Lock()
	r.sender = New(cfg)
	r.mu.Unlock()
}

func (r *Reloadable) Send(ctx context.Context, to, subject, html string) error {
	r.mu.RLock()
	s := r.sender
	r.mu.RUnlock()
	return s.Send(ctx, to, subject, html)
}
