package logx

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

const defaultLogFile = "./httpcron.log"

// Service owns the process log sinks. Loggers handed out by the Service
// pick up sink and level changes made by Apply.
type Service struct {
	active atomic.Pointer[zerolog.Logger]

	mu   sync.Mutex // serializes Apply and Close
	file *os.File
}

// New builds the Service from cfg and returns it with its root logger.
func New(cfg Config) (*Service, Logger) {
	initZerolog()
	s := &Service{}
	s.Apply(cfg)
	return s, s.Logger()
}

func (s *Service) Logger() Logger {
	return Logger{out: s.active.Load}
}

// Apply rebuilds the sinks from cfg. A log file that cannot be opened is
// reported on stderr and skipped; with no sink left, output goes to stdout.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		lvl = LevelInfo
	}

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}
	var file *os.File
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultLogFile
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			NewConsole("error").Error("log file unavailable", String("path", path), Err(err))
			file = nil
		} else {
			sinks = append(sinks, zerolog.SyncWriter(file))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).Level(lvl).With().Timestamp().Logger()
	s.active.Store(&zl)

	if s.file != nil {
		_ = s.file.Close()
	}
	s.file = file
}

// Close releases the log file, if any. Records written afterwards to a file
// sink are lost.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
