package cmd

import (
	"github.com/creativeprojects/mailwatch/lib"
	"github.com/creativeprojects/mailwatch/term"
)

// termLogger adapts the terminal output to the lib.Logger interface used by
// the lower layers.
type termLogger struct{}

func (l termLogger) Print(a ...any)                 { term.Debug(a...) }
func (l termLogger) Println(a ...any)               { term.Debug(a...) }
func (l termLogger) Printf(format string, a ...any) { term.Debugf(format, a...) }

func debugLogger() lib.Logger {
	if global.verbose {
		return termLogger{}
	}
	return &lib.NoLog{}
}
