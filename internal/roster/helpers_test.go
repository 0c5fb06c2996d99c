package roster

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func zapString(key, value string) zapcore.Field {
	return zap.String(key, value)
}
