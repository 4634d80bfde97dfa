package temporal

import "go.uber.org/zap"

// ZapAdapter bridges the Temporal SDK's keyval logger onto zap.
type ZapAdapter struct{ *zap.SugaredLogger }

// NewZapAdapter wraps a zap logger for the Temporal SDK. The sugared form
// carries the SDK's keyvals through unchanged.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{logger.Sugar()}
}

func (z *ZapAdapter) Debug(msg string, keyvals ...any) { z.Debugw(msg, keyvals...) }
func (z *ZapAdapter) Info(msg string, keyvals ...any)  { z.Infow(msg, keyvals...) }
func (z *ZapAdapter) Warn(msg string, keyvals ...any)  { z.Warnw(msg, keyvals...) }
func (z *ZapAdapter) Error(msg string, keyvals ...any) { z.Errorw(msg, keyvals...) }
