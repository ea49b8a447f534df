package sms

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MockMessage 记录下来的一条短信
type MockMessage struct {
	Phone       string
	TemplateKey string
	Params      map[string]string
	SentAt      time.Time
}

// MockSender 只在内存中记录，未开启短信时使用
type MockSender struct {
	mu       sync.Mutex
	messages []MockMessage

	// Err 非空时 Send 直接返回它
	Err error
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

func (s *MockSender) Send(_ context.Context, phone, templateKey string, params map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.messages = append(s.messages, MockMessage{
		Phone:       phone,
		TemplateKey: templateKey,
		Params:      maps.Clone(params),
		SentAt:      time.Now(),
	})
	return nil
}

// Messages 返回副本
func (s *MockSender) Messages() []MockMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MockMessage(nil), s.messages...)
}

// GetLastMessage 没有记录时返回 nil
func (s *MockSender) GetLastMessage() *MockMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	last := s.messages[len(s.messages)-1]
	return &last
}
