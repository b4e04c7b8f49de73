package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log est le logger partagé de l'application. Il vaut un logger no-op tant
// que InitLogger n'a pas été appelé (tests compris).
var Log = zap.NewNop().Sugar()

func InitLogger(logLevel string) {
	config := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	config.Level.SetLevel(level)
	logger, err := config.Build()
	if err != nil {
		return
	}
	Log = logger.Sugar()
}

// SyncLogger vide les buffers du logger avant l'arrêt
func SyncLogger() {
	_ = Log.Sync()
}
