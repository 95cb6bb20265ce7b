package common

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogFilePath returns where the JSON log is written: the XDG state dir for
// regular users, /var/log for root.
func LogFilePath() string {
	if os.Geteuid() != 0 {
		xdgStateHome := os.Getenv("XDG_STATE_HOME")
		if xdgStateHome == "" {
			xdgStateHome = os.Getenv("HOME") + "/.local/state"
		}
		return filepath.Join(xdgStateHome, "logagent", "logagent.log")
	}
	return "/var/log/logagent.log"
}

// InitZerolog configures the global zerolog logger. JSON always goes to the
// log file; console mirrors it in human form on stderr and must be false
// while a TUI owns the terminal.
func InitZerolog(console bool) {
	lvl := os.Getenv("LOGAGENT_LOGLEVEL")
	if lvl == "" {
		lvl = "info"
	}

	level, err := zerolog.ParseLevel(lvl)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().
			Str("provided_level", lvl).
			Str("default_level", level.String()).
			Msg("Invalid log level provided, using default")
	}
	zerolog.SetGlobalLevel(level)

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.ErrorFieldName = "error"

	logfilePath := LogFilePath()
	if err := os.MkdirAll(filepath.Dir(logfilePath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory %s: %v\n", filepath.Dir(logfilePath), err)
	}

	var logFile io.Writer
	f, err := os.OpenFile(logfilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", logfilePath, err)
		logFile = os.Stderr
		console = false
	} else {
		logFile = f
	}

	output := logFile
	if console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:           os.Stderr,
			TimeFormat:    time.RFC3339,
			NoColor:       NoColor(),
			FieldsExclude: []string{"component", "pid"},
		}
		output = zerolog.MultiLevelWriter(consoleWriter, logFile)
	}

	ctx := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Str("component", "logagent").
		Str("version", Version).
		Str("pid", strconv.Itoa(os.Getpid()))

	if hostname, err := os.Hostname(); err == nil {
		ctx = ctx.Str("hostname", hostname)
	}
	if env := os.Getenv("LOGAGENT_ENV"); env != "" {
		ctx = ctx.Str("environment", env)
	}

	log.Logger = ctx.Logger()

	retentionDays := 20
	if v := os.Getenv("LOGAGENT_LOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			retentionDays = n
		}
	}
	if f != nil {
		_ = pruneLogFileByAge(logfilePath, time.Duration(retentionDays)*24*time.Hour)
		go startLogRetentionEnforcer(logfilePath, retentionDays)
	}

	log.Debug().
		Str("component", "logging").
		Str("level", level.String()).
		Str("log_file", logfilePath).
		Bool("console", console).
		Msg("Zerolog initialized")
}

// NoColor reports whether colored output was disabled via LOGAGENT_NOCOLOR.
func NoColor() bool {
	v := os.Getenv("LOGAGENT_NOCOLOR")
	return v == "true" || v == "1"
}

func startLogRetentionEnforcer(logfilePath string, retentionDays int) {
	ticker := time.NewTicker(24 * time.Hour)
	for range ticker.C {
		_ = pruneLogFileByAge(logfilePath, time.Duration(retentionDays)*24*time.Hour)
	}
}

// pruneLogFileByAge rewrites the JSON-lines file at path in place, keeping
// lines newer than maxAge and lines without a readable timestamp. The inode
// is preserved so open writers keep working.
func pruneLogFileByAge(path string, maxAge time.Duration) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), "logagent-log-prune-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	cutoff := time.Now().Add(-maxAge)

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	writer := bufio.NewWriter(tmp)

	kept := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ts, perr := extractTimestamp(line)
		if perr != nil || ts.IsZero() || !ts.Before(cutoff) {
			if _, err := writer.WriteString(line + "\n"); err != nil {
				return err
			}
			kept++
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	dst, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := dst.Truncate(0); err != nil {
		return err
	}
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.Copy(dst, tmp); err != nil {
		return err
	}

	log.Debug().
		Str("component", "logging").
		Str("action", "prune").
		Str("file", path).
		Int("kept_lines", kept).
		Dur("max_age", maxAge).
		Msg("Pruned log file by age")

	return nil
}

func extractTimestamp(line string) (time.Time, error) {
	var tmp struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal([]byte(line), &tmp); err != nil {
		return time.Time{}, err
	}
	if tmp.Timestamp == "" {
		return time.Time{}, fmt.Errorf("no timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, tmp.Timestamp); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, tmp.Timestamp)
}
