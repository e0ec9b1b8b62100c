package logger

import (
	"os"
	"strings"

	"quiz_master_backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ServiceName 写入每条日志的 service 字段，与链路追踪的服务名一致
const ServiceName = "quiz-master"

const defaultLogPath = "logs/quiz_master.log"

// Log 在 InitLogger 之前为 no-op，测试中无需初始化
var Log = zap.NewNop()

// Level 优先使用 log.level，无效或为空时 debug 模式输出 Debug，否则 Info
func Level(cfg *config.Config) zapcore.Level {
	if lvl := strings.TrimSpace(cfg.Log.Level); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			return parsed
		}
	}
	if cfg.Server.Mode == "debug" {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}

func fileWriter(cfg config.LogConfig) zapcore.WriteSyncer {
	path := cfg.Path
	if path == "" {
		path = defaultLogPath
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// New 构建写文件(JSON)与控制台的双路 logger
func New(cfg *config.Config, file zapcore.WriteSyncer, console zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := Level(cfg)
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), file, level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), console, level),
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)).
		With(
			zap.String("service", ServiceName),
			zap.String("app", cfg.App.Name),
			zap.String("mode", cfg.Server.Mode),
		)
}

func InitLogger(cfg *config.Config) {
	Log = New(cfg, fileWriter(cfg.Log), zapcore.AddSync(os.Stdout))
}
