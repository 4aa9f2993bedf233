package logx

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

const prefix = "[LLMCFG]"

var enableColor = isatty.IsTerminal(os.Stdout.Fd()) && strings.TrimSpace(os.Getenv("NO_COLOR")) == ""

// ColorEnabled reports whether stdout is a terminal and NO_COLOR is unset.
func ColorEnabled() bool { return enableColor }

// Field is one key=value pair appended to a request line. Fields with an
// empty value are left out.
type Field struct {
	Key   string
	Value string
}

func statusColor(status int) string {
	switch status / 100 {
	case 2:
		return "\x1b[32m"
	case 3:
		return "\x1b[36m"
	case 4:
		return "\x1b[33m"
	default:
		return "\x1b[31m"
	}
}

// ColorizeStatusWith renders status, wrapped in an ANSI colour by class when
// color is set.
func ColorizeStatusWith(status int, color bool) string {
	s := strconv.Itoa(status)
	if !color {
		return s
	}
	return statusColor(status) + s + "\x1b[0m"
}

// FormatRequestLine renders one access log line, e.g.
//
//	[LLMCFG] 2026/10/16 - 17:44:22 | 200 | 1.2s | 127.0.0.1 | POST "/_llm/config" | outcome=ok model=claude-3-5-sonnet-20241022
//
// Fields keep the order they are given in.
func FormatRequestLine(ts time.Time, status int, latency time.Duration, clientIP, method, path string, color bool, fields ...Field) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(" ")
	b.WriteString(ts.Format("2006/01/02 - 15:04:05"))
	for _, col := range []string{
		ColorizeStatusWith(status, color),
		latency.String(),
		strings.TrimSpace(clientIP),
		strings.TrimSpace(method) + " " + strconv.Quote(path),
	} {
		b.WriteString(" | ")
		b.WriteString(col)
	}

	sep := " | "
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		b.WriteString(sep)
		b.WriteString(f.Key)
		b.WriteString("=")
		b.WriteString(f.Value)
		sep = " "
	}
	return b.String()
}
