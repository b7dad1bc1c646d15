package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// NewLogger собирает zap-логгер: консольный формат, stdout и (если задан) файл.
func NewLogger(level string, filePath string) *zap.Logger {
	atomicLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		if parsed, err := zap.ParseAtomicLevel(level); err == nil {
			atomicLevel = parsed
		}
	}

	outputs := []string{"stdout"}
	if filePath != "" {
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err == nil {
			outputs = append(outputs, filePath)
		}
	}

	dualConfig := zap.Config{
		Encoding:         "console",
		Level:            atomicLevel,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    zap.NewProductionEncoderConfig(),
	}

	dualLogger, err := dualConfig.Build()
	if err != nil {
		panic(err)
	}

	return dualLogger
}
