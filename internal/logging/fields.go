package logging

import (
	"log/slog"
	"time"
)

// Field names shared by every component.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldWorker    = "worker"
	FieldSubject   = "subject"
	FieldStream    = "stream"
	FieldOutcome   = "outcome"
	FieldReason    = "reason"
	FieldInstance  = "instance"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func Worker(id int) slog.Attr {
	return slog.Int(FieldWorker, id)
}

func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

func Stream(name string) slog.Attr {
	return slog.String(FieldStream, name)
}

// Outcome returns an attribute for a routing outcome such as "success".
func Outcome(kind string) slog.Attr {
	return slog.String(FieldOutcome, kind)
}

func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

func Instance(id string) slog.Attr {
	return slog.String(FieldInstance, id)
}

// Duration returns an attribute holding d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns an attribute for err. A nil error logs as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
