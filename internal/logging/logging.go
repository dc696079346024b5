// Package logging builds the process logger: leveled JSON log files plus an
// optional human-readable console.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TimestampField is the field every record is stamped with.
const TimestampField = "timestamp"

// Kind selects the sink a Destination writes to.
type Kind string

const (
	// KindFile appends JSON lines to a file.
	KindFile Kind = "file"
	// KindConsole writes human-readable lines, normally to stdout.
	KindConsole Kind = "console"
)

// Rotation bounds a file destination. Zero values use lumberjack's defaults.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Destination is one leveled output sink. It only receives records at or
// above Level.
type Destination struct {
	Kind  Kind
	Level zerolog.Level

	// Path and Rotation apply to KindFile.
	Path string
	Rotation

	// Out and NoColor apply to KindConsole. Out defaults to os.Stdout.
	Out     io.Writer
	NoColor bool
}

// Config describes the logger. Level is the minimum severity accepted at all;
// each destination filters again on its own level.
type Config struct {
	Level        zerolog.Level
	Destinations []Destination

	// Now stamps records. Defaults to time.Now.
	Now func() time.Time
}

// DefaultDestinations returns the standard layout: dir/api.log receives info
// and above, dir/error.log receives errors only, and outside production a
// console mirrors everything at info and above.
func DefaultDestinations(dir string, production bool, rot Rotation) []Destination {
	dests := []Destination{
		{Kind: KindFile, Level: zerolog.InfoLevel, Path: filepath.Join(dir, "api.log"), Rotation: rot},
		{Kind: KindFile, Level: zerolog.ErrorLevel, Path: filepath.Join(dir, "error.log"), Rotation: rot},
	}
	if !production {
		dests = append(dests, Destination{Kind: KindConsole, Level: zerolog.InfoLevel})
	}
	return dests
}

// Service is the logger shared by the HTTP pipeline. It is safe for
// concurrent use.
type Service struct {
	logger  zerolog.Logger
	closers []io.Closer
}

func init() {
	// Err() on an event carries the stack when the error has one.
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// New opens every destination and returns the logging service.
func New(cfg Config) (*Service, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Service{}
	writers := make([]io.Writer, 0, len(cfg.Destinations))
	for i, d := range cfg.Destinations {
		w, err := s.open(d)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("destination %d: %w", i, err)
		}
		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: w},
			Level:  d.Level,
		})
	}

	s.logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(cfg.Level).
		Hook(timestampHook{now: now})
	return s, nil
}

func (s *Service) open(d Destination) (io.Writer, error) {
	switch d.Kind {
	case KindFile:
		if d.Path == "" {
			return nil, errors.New("file destination needs a path")
		}
		f := &lumberjack.Logger{
			Filename:   d.Path,
			MaxSize:    d.MaxSizeMB,
			MaxBackups: d.MaxBackups,
			MaxAge:     d.MaxAgeDays,
			Compress:   d.Compress,
		}
		s.closers = append(s.closers, f)
		return f, nil
	case KindConsole:
		out := d.Out
		if out == nil {
			out = os.Stdout
		}
		return zerolog.ConsoleWriter{
			Out:           out,
			NoColor:       d.NoColor,
			PartsOrder:    []string{zerolog.LevelFieldName, zerolog.MessageFieldName},
			FieldsExclude: []string{TimestampField},
		}, nil
	default:
		return nil, fmt.Errorf("unknown destination kind %q", d.Kind)
	}
}

// Nop returns a service that discards everything.
func Nop() *Service {
	return &Service{logger: zerolog.Nop()}
}

// Logger exposes the underlying zerolog logger.
func (s *Service) Logger() *zerolog.Logger {
	return &s.logger
}

// Info starts an info-level record.
func (s *Service) Info() *zerolog.Event {
	return s.logger.Info()
}

// Error starts an error-level record.
func (s *Service) Error() *zerolog.Event {
	return s.logger.Error()
}

// Close releases the file destinations.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

type timestampHook struct {
	now func() time.Time
}

func (h timestampHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Time(TimestampField, h.now())
}
