package logger

import "sync/atomic"

var defLogger atomic.Value // Logger

func init() {
	defLogger.Store(NewSlog(InfoLevel, false))
}

func get() Logger {
	l, _ := defLogger.Load().(Logger)
	return l
}

func Debug(msg string, keysAndValues ...any) {
	get().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	get().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	get().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	get().Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	get().Fatal(msg, keysAndValues...)
}

func SetLevel(level Level) {
	get().SetLevel(level)
}

// SetDefault replaces the package-level logger. A nil logger is ignored.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defLogger.Store(l)
}

func GetLogger() Logger {
	return get()
}

func With(keyValues ...any) Logger {
	return get().With(keyValues...)
}
