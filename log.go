package stratum

import "go.uber.org/zap"

// newLogger builds the default production logger used when a Config
// is given no Logger of its own. Callers embedding stratum in a
// larger service should build their own *zap.SugaredLogger and set it
// on Config instead of relying on this default.
func newLogger() *zap.SugaredLogger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}
