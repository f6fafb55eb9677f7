package tasks

import "fmt"

// Logger is the minimal logging surface the core depends on. It is
// satisfied by glog.Logger so applications can wire structured logging
// without the core importing it.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type defLogger struct{}

// DefaultLogger returns the fallback stdout logger.
func DefaultLogger() Logger {
	return defLogger{}
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] TASKS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] TASKS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] TASKS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] TASKS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
