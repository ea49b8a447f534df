package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
	"github.com/dumeirei/coupon-platform-backend/internal/service/notify"
	"github.com/dumeirei/coupon-platform-backend/pkg/mailer"
	"github.com/dumeirei/coupon-platform-backend/pkg/mqtt"
	"github.com/dumeirei/coupon-platform-backend/pkg/sms"
)

// setupNotifier 按配置组装通知渠道，返回调度器与渠道清理函数
// 邮件与短信未启用时使用 Mock 发送器，只记录不外发
func setupNotifier(cfg *config.Config, logger *zap.Logger, redisClient *redis.Client) (*notify.Dispatcher, func(), error) {
	var channels []notify.Channel
	cleanup := func() {}

	var mailSender mailer.Sender = mailer.NewMockSender()
	if cfg.Mail.Enabled {
		mailSender = mailer.NewSMTPSender(&mailer.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
		})
	}
	channels = append(channels, notify.NewEmailChannel(mailSender))

	var smsSender sms.Sender = sms.NewMockSender()
	if cfg.SMS.Enabled {
		aliyun, err := sms.NewAliyunSender(&sms.AliyunConfig{
			AccessKeyID:     cfg.SMS.AccessKeyID,
			AccessKeySecret: cfg.SMS.AccessKeySecret,
			SignName:        cfg.SMS.SignName,
			Templates: map[string]string{
				sms.TemplateCouponAssigned: cfg.SMS.AssignedTemplate,
				sms.TemplateCouponRedeemed: cfg.SMS.RedeemedTemplate,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		smsSender = aliyun
	}
	channels = append(channels, notify.NewSMSChannel(smsSender))

	if cfg.MQTT.Enabled {
		client := mqtt.NewClient(&mqtt.Config{
			Broker:         cfg.MQTT.Broker,
			ClientID:       fmt.Sprintf("%s%s", cfg.MQTT.ClientIDPrefix, uuid.NewString()[:8]),
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			CleanSession:   true,
			QoS:            cfg.MQTT.QoS,
			Retained:       cfg.MQTT.Retained,
			KeepAlive:      cfg.MQTT.KeepAlive,
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
			AutoReconnect:  cfg.MQTT.AutoReconnect,
			StatusTopic:    strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/") + "/status",
		}, logger)
		if err := client.Connect(); err != nil {
			return nil, nil, fmt.Errorf("连接 MQTT 失败: %w", err)
		}
		channels = append(channels, notify.NewEventChannel(mqtt.NewEventPublisher(client, cfg.MQTT.TopicPrefix)))
		cleanup = client.Disconnect
	}

	opts := notify.Options{
		Workers:        cfg.Notify.Workers,
		QueueSize:      cfg.Notify.QueueSize,
		MaxRetries:     cfg.Notify.MaxRetries,
		RetryBackoff:   cfg.Notify.RetryBackoff,
		RedisQueue:     cfg.Notify.RedisQueue,
		EnqueueTimeout: cfg.Notify.EnqueueTimeout,
	}
	if cfg.Notify.UseRedis && redisClient != nil {
		opts.Redis = redisClient
	}

	logger.Info("notification channels ready",
		zap.Bool("mail", cfg.Mail.Enabled),
		zap.Bool("sms", cfg.SMS.Enabled),
		zap.Bool("mqtt", cfg.MQTT.Enabled),
	)
	return notify.NewDispatcher(opts, channels...), cleanup, nil
}
