// Package logger builds the admin server's zerolog logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

type LogBuild struct {
	writer  io.Writer
	path    string
	level   zerolog.Level
	console bool
	service string
}

type LogData struct {
	writer  io.Writer
	LogFile *os.File
	Logger  zerolog.Logger
}

func New() *LogBuild {
	return &LogBuild{level: zerolog.InfoLevel}
}

// FromPath appends log lines to the file at path.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromWriter(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// WithLevel parses a zerolog level name; an unknown name keeps info.
func (build *LogBuild) WithLevel(level string) *LogBuild {
	if l, err := zerolog.ParseLevel(level); err == nil && level != "" {
		build.level = l
	}
	return build
}

// Console switches to human-readable output.
func (build *LogBuild) Console(on bool) *LogBuild {
	build.console = on
	return build
}

func (build *LogBuild) Service(name string) *LogBuild {
	build.service = name
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	logData.writer = os.Stdout
	if build.writer != nil {
		logData.writer = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		logData.writer = zerolog.SyncWriter(logData.LogFile)
	}
	if build.console {
		logData.writer = zerolog.ConsoleWriter{Out: logData.writer, NoColor: build.path != ""}
	}
	ctx := zerolog.New(logData.writer).Level(build.level).With().Timestamp()
	if build.service != "" {
		ctx = ctx.Str("service", build.service)
	}
	logData.Logger = ctx.Logger()
	return
}

// Close closes the log file, if any.
func (l *LogData) Close() error {
	if l == nil || l.LogFile == nil {
		return nil
	}
	return l.LogFile.Close()
}
