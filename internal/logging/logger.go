package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation.
const (
	LogFileName   = "poolprobe.log"
	LogMaxSizeMB  = 10
	LogMaxBackups = 3
	LogMaxAgeDays = 14
)

var (
	logFileWriter io.WriteCloser //nolint:gochecknoglobals // closed on shutdown
	globalMu      sync.Mutex     //nolint:gochecknoglobals // guards log.Logger
)

// Options controls the logger built by Init.
type Options struct {
	Verbose bool
	Quiet   bool
	// Dir receives the rotating log file. Empty means ~/.poolprobe/logs;
	// "-" disables the file.
	Dir string
	// NoConsole keeps stderr clean while a full-screen UI owns the terminal.
	NoConsole bool
}

// Init builds the process logger. Console output goes to stderr, as a
// ConsoleWriter on a TTY and JSON otherwise. A rotating file copy is kept when
// the log directory can be created; failure to do so is not fatal.
func Init(opts Options) zerolog.Logger {
	writer := io.Discard
	if !opts.NoConsole {
		writer = NewFilteringWriter(selectOutput())
	}
	if fw, err := createLogFileWriter(opts.Dir); err == nil && fw != nil {
		logFileWriter = fw
		writer = zerolog.MultiLevelWriter(writer, fw)
	}

	logger := zerolog.New(writer).
		Level(selectLevel(opts.Verbose, opts.Quiet)).
		Hook(NewSensitiveDataHook()).
		With().Timestamp().Logger()
	setGlobal(logger)
	return logger
}

// InitWithWriter builds a logger that writes only to w. Intended for tests.
func InitWithWriter(verbose, quiet bool, w io.Writer) zerolog.Logger {
	logger := zerolog.New(NewFilteringWriter(w)).
		Level(selectLevel(verbose, quiet)).
		Hook(NewSensitiveDataHook()).
		With().Timestamp().Logger()
	setGlobal(logger)
	return logger
}

// Close flushes and closes the log file, if one was opened.
func Close() {
	if logFileWriter != nil {
		_ = logFileWriter.Close()
		logFileWriter = nil
	}
}

func setGlobal(l zerolog.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	log.Logger = l
}

func selectLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

func selectOutput() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return os.Stderr
}

func createLogFileWriter(dir string) (io.WriteCloser, error) {
	if dir == "-" {
		return nil, nil
	}
	if dir == "" {
		home, err := Home()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, "logs")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   filepath.Join(dir, LogFileName),
		MaxSize:    LogMaxSizeMB,
		MaxBackups: LogMaxBackups,
		MaxAge:     LogMaxAgeDays,
		Compress:   true,
	}
	return &filteringWriteCloser{FilteringWriter: NewFilteringWriter(lj), closer: lj}, nil
}

type filteringWriteCloser struct {
	*FilteringWriter
	closer io.Closer
}

func (f *filteringWriteCloser) Close() error {
	return f.closer.Close()
}

// Home returns the poolprobe data directory: $POOLPROBE_HOME or ~/.poolprobe.
func Home() (string, error) {
	if h := os.Getenv("POOLPROBE_HOME"); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".poolprobe"), nil
}
