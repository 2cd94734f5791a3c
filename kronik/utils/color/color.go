package color

import (
	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	infoColor    = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	likeColor    = color.New(color.FgHiMagenta, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func ColorHeader(s string) string {
	return headerColor.Sprint(s)
}

func ColorInfo(s string) string {
	return infoColor.Sprint(s)
}

func ColorWarning(s string) string {
	return warningColor.Sprint(s)
}

func ColorError(s string) string {
	return errorColor.Sprint(s)
}

func ColorLike(s string) string {
	return likeColor.Sprint(s)
}

func ColorDim(s string) string {
	return dimColor.Sprint(s)
}

// ColorStatus colors a session status: active, completed or failed.
func ColorStatus(status string) string {
	switch status {
	case "active":
		return warningColor.Sprint(status)
	case "completed":
		return infoColor.Sprint(status)
	case "failed":
		return errorColor.Sprint(status)
	default:
		return status
	}
}

// Disable turns coloring off, e.g. for --no-color or non-terminal output.
func Disable() {
	color.NoColor = true
}
