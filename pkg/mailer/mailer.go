// Package mailer 提供 SMTP 邮件发送
package mailer

import (
	"context"
	"fmt"
	"sync"

	"gopkg.in/gomail.v2"
)

// Config SMTP 配置
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Message 邮件内容
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPSender 基于 gomail 的 SMTP 发送器
type SMTPSender struct {
	config *Config
	dialer *gomail.Dialer
}

// NewSMTPSender 创建 SMTP 发送器
func NewSMTPSender(config *Config) *SMTPSender {
	return &SMTPSender{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}
}

// Send 发送邮件，每次发送建立一次连接
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := s.build(msg)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

func (s *SMTPSender) build(msg *Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.config.From, s.config.FromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	return m
}

// MockSender 模拟发送器（用于开发/测试）
type MockSender struct {
	mu   sync.Mutex
	sent []*Message
	// Err 非空时 Send 返回该错误
	Err error
}

// NewMockSender 创建模拟发送器
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send 记录邮件
func (s *MockSender) Send(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sent = append(s.sent, msg)
	return nil
}

// Sent 已发送的邮件
func (s *MockSender) Sent() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Message, len(s.sent))
	copy(out, s.sent)
	return out
}
