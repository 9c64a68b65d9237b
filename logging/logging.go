package logging

import "go.uber.org/zap"

// New returns a named child of the global zap logger, so components pick up
// whatever logger config.New installed
func New(component string) *zap.SugaredLogger {
	return zap.L().Named(component).Sugar()
}
