package style

import (
	"github.com/heroku/color"
)

var Symbol = func(value string) string {
	if color.Enabled() {
		return Key(value)
	}
	return "'" + value + "'"
}

var Key = func(format string, a ...interface{}) string {
	return color.HiBlueString(format, a...)
}

var Warn = color.New(color.FgYellow, color.Bold).SprintfFunc()

var Error = color.New(color.FgRed, color.Bold).SprintfFunc()
