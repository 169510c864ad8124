package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared across packages.
const (
	KeyCommand    = "command"
	KeyPartition  = "partition"
	KeyVersion    = "version"
	KeyWorkflow   = "workflow"
	KeyOutcome    = "outcome"
	KeyDurationMS = "duration_ms"
	KeyURL        = "url"
	KeySubject    = "subject"
	KeyJob        = "job"
	KeyError      = "error"
)

func Command(t string) slog.Attr     { return slog.String(KeyCommand, t) }
func Partition(p string) slog.Attr   { return slog.String(KeyPartition, p) }
func Version(v uint64) slog.Attr     { return slog.Uint64(KeyVersion, v) }
func Workflow(w string) slog.Attr    { return slog.String(KeyWorkflow, w) }
func Outcome(o string) slog.Attr     { return slog.String(KeyOutcome, o) }
func URL(u string) slog.Attr         { return slog.String(KeyURL, u) }
func Subject(s string) slog.Attr     { return slog.String(KeySubject, s) }
func Job(name string) slog.Attr      { return slog.String(KeyJob, name) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
