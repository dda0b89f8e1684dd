package logging

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

const levelFatal = "FATAL"

// writeLog formats and emits a log line.
// ERROR and FATAL go to stderr; everything else goes to stdout.
// Fields are emitted in sorted key order so output is stable in tests.
func (l *Logger) writeLog(level, msg string, fields map[string]interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s: %s", Timestamp(), level, l.name, msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}

	if level == strError || level == levelFatal {
		fmt.Fprintln(os.Stderr, b.String())
	} else {
		fmt.Fprintln(os.Stdout, b.String())
	}
}

func (l *Logger) logf(level, msg string, args ...interface{}) {
	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}
	var merged map[string]interface{}
	if len(l.fields) > 0 {
		merged = cloneFields(l.fields)
	}
	l.writeLog(level, formatted, merged)
}

// Timestamp returns an RFC3339 timestamp for log lines.
// LOG_TIMESTAMP overrides the clock for deterministic test output.
func Timestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}
