package main

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tangzhangming/localdce/internal/config"
	"github.com/tangzhangming/localdce/internal/ir"
	"github.com/tangzhangming/localdce/internal/irtext"
	"github.com/tangzhangming/localdce/internal/logger"
)

// session 一次命令的配置、日志与输入
type session struct {
	cfg     *config.Config
	log     *zap.Logger
	methods []*ir.Method
}

// openSession 加载配置和所有输入文件
//
// 未指定配置文件时从第一个输入文件所在目录向上查找。
func openSession(configPath string, files []string) (*session, error) {
	if configPath == "" && len(files) > 0 {
		configPath = config.FindConfigFile(files[0])
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		log.Debug("config loaded", zap.String("path", configPath))
	}

	s := &session{cfg: cfg, log: log}
	var errs error
	for _, f := range files {
		methods, err := irtext.LoadFile(f)
		errs = multierr.Append(errs, err)
		s.methods = append(s.methods, methods...)
	}
	if errs != nil {
		_ = log.Sync()
		return nil, errs
	}
	if len(s.methods) == 0 {
		_ = log.Sync()
		return nil, fmt.Errorf("no methods in input")
	}
	log.Debug("methods loaded", zap.Int("count", len(s.methods)), zap.Strings("files", files))
	return s, nil
}

func (s *session) close() {
	_ = s.log.Sync()
}
