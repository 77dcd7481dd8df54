package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the application logger. Without a log file this is plain
// zap production; with one, output additionally goes to a rotated file.
func New(logFile string) *zap.Logger {
	if logFile == "" {
		logger, _ := zap.NewProduction()
		return logger
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	rotated := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, rotated, zapcore.InfoLevel),
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel),
	)
	return zap.New(core)
}
