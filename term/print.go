package term

import "github.com/pterm/pterm"

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	lvl    = LevelInfo
	colors = map[Level]pterm.Color{
		LevelDebug: pterm.FgLightCyan,
		LevelInfo:  pterm.FgLightGreen,
		LevelWarn:  pterm.FgYellow,
		LevelError: pterm.FgLightRed,
	}
)

func SetLevel(level Level) {
	lvl = level
}

func print(level Level, a ...interface{}) {
	if lvl > level {
		return
	}
	colors[level].Println(a...)
}

func printf(level Level, format string, a ...interface{}) {
	if lvl > level {
		return
	}
	colors[level].Printfln(format, a...)
}

func Debug(a ...interface{})                 { print(LevelDebug, a...) }
func Debugf(format string, a ...interface{}) { printf(LevelDebug, format, a...) }
func Info(a ...interface{})                  { print(LevelInfo, a...) }
func Infof(format string, a ...interface{})  { printf(LevelInfo, format, a...) }
func Warn(a ...interface{})                  { print(LevelWarn, a...) }
func Warnf(format string, a ...interface{})  { printf(LevelWarn, format, a...) }
func Error(a ...interface{})                 { print(LevelError, a...) }
func Errorf(format string, a ...interface{}) { printf(LevelError, format, a...) }
