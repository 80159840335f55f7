package log

// Logger is the logging surface used across vrteleop.
// Packages depend on this interface, never on logrus directly.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	// WithField returns a child logger that appends key=value to every line.
	// The "component" key is rendered as a bracketed prefix instead.
	WithField(key string, value interface{}) Logger
}
