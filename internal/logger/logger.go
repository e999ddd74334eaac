// Package logger 构建命令行与批处理使用的 zap 日志
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugEnv 设置为 1/true/on 时强制输出调试日志
const DebugEnv = "LOCALDCE_DEBUG"

// Options 日志选项
type Options struct {
	Level string // debug/info/warn/error，为空时为 info
	File  string // 日志文件路径，为空时输出到 stderr
}

// New 创建日志记录器
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if debugForced() {
		level = zapcore.DebugLevel
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	if opts.File != "" {
		zc.OutputPaths = []string{opts.File}
	}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// ParseLevel 解析日志级别
func ParseLevel(s string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func debugForced() bool {
	v := os.Getenv(DebugEnv)
	return v == "1" || v == "true" || v == "on"
}
