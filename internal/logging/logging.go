// Package logging builds the process loggers from configuration.
//
// The relay itself logs through log/slog. The intercepting proxy runtime logs
// through logrus, so both are pointed at the same writer and level.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"localstack-relay/internal/config"
)

// Output returns the writer all log streams share. When a log file is
// configured, stdout is tee'd to a size-rotated file.
func Output(cfg *config.LogConfig) io.Writer {
	return output(cfg, os.Stdout)
}

func output(cfg *config.LogConfig, stdout io.Writer) io.Writer {
	if cfg.File == "" {
		return stdout
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays, // days
		LocalTime:  true,
		Compress:   true,
	}
	return io.MultiWriter(stdout, file)
}

// Level maps a config level name to a slog level. Unknown names are info.
func Level(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a slog logger writing JSON or text to w.
func NewLogger(cfg *config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(cfg.Level)}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// ConfigureLogrus points the standard logrus logger, used by the proxy
// runtime, at w with a level and formatter matching cfg.
func ConfigureLogrus(l *logrus.Logger, cfg *config.LogConfig, w io.Writer) {
	l.SetOutput(w)

	switch Level(cfg.Level) {
	case slog.LevelDebug:
		l.SetLevel(logrus.DebugLevel)
	case slog.LevelWarn:
		l.SetLevel(logrus.WarnLevel)
	case slog.LevelError:
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "msg",
			},
		})
	}
}
