package events

import (
	"go.uber.org/zap"
)

// ZapSink forwards events to a zap logger. It lives here so the core can
// stay side-effect free: producers emit data, and only the composition root
// decides to turn that data into log lines.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink logging every event at info level.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Emit(e Event) {
	fields := make([]zap.Field, 0, len(e.Fields)+1)
	if e.ResourceID != "" {
		fields = append(fields, zap.String("resource_id", e.ResourceID))
	}
	for k, v := range e.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	s.logger.Info(string(e.Kind), fields...)
}
