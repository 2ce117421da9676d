package flake

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewSugar builds the JSON logger used across the package. Binaries pass
// stderr because stdout belongs to the node runtime protocol.
func NewSugar(w io.Writer, level zapcore.Level) *zap.SugaredLogger {
	encConf := zap.NewProductionEncoderConfig()
	encConf.EncodeTime = zapcore.ISO8601TimeEncoder
	logger := zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encConf), zapcore.AddSync(w), level))
	return logger.Sugar()
}

func nopSugar() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
