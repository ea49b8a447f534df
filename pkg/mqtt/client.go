// Package mqtt 优惠券事件的 MQTT 发布端，基于 paho 客户端
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ErrNotConnected 尚未连接或连接已断开
var ErrNotConnected = errors.New("mqtt: not connected")

// 断开时等待在途消息的毫秒数
const disconnectQuiesce = 250

// Config 连接参数
type Config struct {
	Broker         string // tcp://host:1883
	ClientID       string
	Username       string
	Password       string
	CleanSession   bool
	QoS            byte
	Retained       bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
	// StatusTopic 非空时连接后发布保留消息 online，异常断开由遗嘱消息置为 offline
	StatusTopic string
}

// Client 只负责发布，平台本身不订阅任何主题
type Client struct {
	cfg    *Config
	conn   paho.Client
	logger *zap.Logger
}

// NewClient 创建客户端，需调用 Connect 后才能发布
func NewClient(cfg *Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, logger: logger.Named("mqtt")}
}

func (c *Client) options() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(c.cfg.Broker).
		SetClientID(c.cfg.ClientID).
		SetUsername(c.cfg.Username).
		SetPassword(c.cfg.Password).
		SetCleanSession(c.cfg.CleanSession).
		SetAutoReconnect(c.cfg.AutoReconnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logger.Warn("connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(paho.Client) {
			c.logger.Info("connected", zap.String("broker", c.cfg.Broker))
			c.publishStatus("online")
		})
	if c.cfg.KeepAlive > 0 {
		opts.SetKeepAlive(c.cfg.KeepAlive)
	}
	if c.cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	}
	if c.cfg.StatusTopic != "" {
		opts.SetWill(c.cfg.StatusTopic, "offline", c.cfg.QoS, true)
	}
	return opts
}

// Connect 阻塞直到连接成功或超时
func (c *Client) Connect() error {
	c.conn = paho.NewClient(c.options())
	token := c.conn.Connect()
	if !token.WaitTimeout(c.connectWait()) {
		return fmt.Errorf("mqtt: connect to %s timed out", c.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect to %s: %w", c.cfg.Broker, err)
	}
	return nil
}

func (c *Client) connectWait() time.Duration {
	if c.cfg.ConnectTimeout > 0 {
		return c.cfg.ConnectTimeout
	}
	return 30 * time.Second
}

func (c *Client) publishStatus(status string) {
	if c.cfg.StatusTopic == "" || c.conn == nil {
		return
	}
	token := c.conn.Publish(c.cfg.StatusTopic, c.cfg.QoS, true, status)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		c.logger.Warn("publish status failed", zap.String("status", status), zap.Error(token.Error()))
	}
}

// Disconnect 主动断开前先把状态置为 offline
func (c *Client) Disconnect() {
	if !c.IsConnected() {
		return
	}
	c.publishStatus("offline")
	c.conn.Disconnect(disconnectQuiesce)
	c.logger.Info("disconnected")
}

// IsConnected 是否处于连接状态
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// PublishWithContext 发布消息并等待 broker 确认，ctx 取消时立即返回
func (c *Client) PublishWithContext(ctx context.Context, topic string, payload interface{}) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}

	token := c.conn.Publish(topic, c.cfg.QoS, c.cfg.Retained, data)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

// encodePayload 字节与字符串原样发送，其余类型编码为 JSON
func encodePayload(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mqtt: encode payload: %w", err)
	}
	return data, nil
}
