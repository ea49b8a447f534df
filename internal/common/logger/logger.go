// Package logger 基于 zap 的全局结构化日志，文件输出由 lumberjack 按大小滚动
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dumeirei/coupon-platform-backend/internal/common/config"
)

// 输出目标
const (
	OutputStdout = "stdout"
	OutputFile   = "file"
	OutputBoth   = "both"
)

const timeLayout = "2006-01-02 15:04:05.000"

var global atomic.Pointer[zap.Logger]

// New 按配置构建日志器，不影响全局日志器
func New(cfg *config.LoggerConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		lv, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = lv
	}

	sink, err := buildSink(cfg)
	if err != nil {
		return nil, err
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		// 包级函数多包一层调用
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	return zap.New(zapcore.NewCore(buildEncoder(cfg.Format), sink, level), opts...), nil
}

// Init 构建日志器并设为全局
func Init(cfg *config.LoggerConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger 替换全局日志器，nil 表示恢复到未初始化状态
func SetLogger(l *zap.Logger) {
	global.Store(l)
}

// GetLogger 返回全局日志器，未初始化时惰性创建开发模式日志器
func GetLogger() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	dev, err := zap.NewDevelopment()
	if err != nil {
		dev = zap.NewNop()
	}
	if global.CompareAndSwap(nil, dev) {
		return dev
	}
	return global.Load()
}

func buildEncoder(format string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if strings.EqualFold(format, "json") {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func buildSink(cfg *config.LoggerConfig) (zapcore.WriteSyncer, error) {
	output := cfg.Output
	if output == "" {
		output = OutputStdout
	}

	var sinks []zapcore.WriteSyncer
	switch output {
	case OutputStdout:
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	case OutputFile, OutputBoth:
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log output %q requires file_path", output)
		}
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}))
		if output == OutputBoth {
			sinks = append(sinks, zapcore.Lock(os.Stdout))
		}
	default:
		return nil, fmt.Errorf("unknown log output %q", output)
	}
	return zapcore.NewMultiWriteSyncer(sinks...), nil
}

// Sync 刷新缓冲，stdout 在部分平台上返回的 EINVAL 可以忽略
func Sync() error {
	if l := global.Load(); l != nil {
		return l.Sync()
	}
	return nil
}

// Named 返回带模块名的子日志器
func Named(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// Debug 调试日志
func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }

// Info 信息日志
func Info(msg string, fields ...zap.Field) { GetLogger().Info(msg, fields...) }

// Warn 警告日志
func Warn(msg string, fields ...zap.Field) { GetLogger().Warn(msg, fields...) }

// Error 错误日志
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// Latency 耗时字段，统一以毫秒输出
func Latency(d time.Duration) zap.Field {
	return zap.Duration("latency", d)
}
