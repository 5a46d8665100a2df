package discord

import (
	"time"

	"go.uber.org/zap"
)

func step(log *zap.Logger, label string) func() {
	start := time.Now()
	return func() { log.Debug("trace", zap.String("step", label), zap.Duration("dur", time.Since(start))) }
}
