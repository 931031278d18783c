package main

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// glogLogger routes session logs to glog. Debug output needs --v=1.
type glogLogger struct{}

func (glogLogger) Debug(msg string, kv ...interface{}) {
	if glog.V(1) {
		glog.InfoDepth(1, formatKV(msg, kv))
	}
}

func (glogLogger) Info(msg string, kv ...interface{}) {
	glog.InfoDepth(1, formatKV(msg, kv))
}

func (glogLogger) Warn(msg string, kv ...interface{}) {
	glog.WarningDepth(1, formatKV(msg, kv))
}

func (glogLogger) Error(msg string, kv ...interface{}) {
	glog.ErrorDepth(1, formatKV(msg, kv))
}

// formatKV renders msg followed by key=value pairs.
func formatKV(msg string, kv []interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 == 1 {
		fmt.Fprintf(&b, " %v", kv[len(kv)-1])
	}
	return b.String()
}
