package common

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// ConfigName is the base name of the shared config file (logagent.yaml).
const ConfigName = "logagent"

var Version = "devel"

// Init sets up logging and reads the shared config. console should be false
// for commands that take over the terminal.
func Init(console bool) error {
	InitZerolog(console)

	if err := ConfInit(ConfigName, nil); err != nil {
		return err
	}

	log.Debug().
		Str("component", "init").
		Str("version", Version).
		Bool("user_mode", os.Geteuid() != 0).
		Msg("logagent initialized")
	return nil
}

// StateDir returns a writable directory for persistent data, creating it if
// needed. Users get $XDG_STATE_HOME/logagent, root gets /var/lib/logagent and
// the temp dir is the last resort.
func StateDir() string {
	if os.Geteuid() != 0 {
		xdgState := os.Getenv("XDG_STATE_HOME")
		if xdgState == "" {
			if home := os.Getenv("HOME"); home != "" {
				xdgState = filepath.Join(home, ".local", "state")
			}
		}
		if xdgState != "" {
			dir := filepath.Join(xdgState, "logagent")
			if err := os.MkdirAll(dir, 0o755); err == nil {
				return dir
			}
		}
	} else if err := os.MkdirAll("/var/lib/logagent", 0o755); err == nil {
		return "/var/lib/logagent"
	}

	tmp := filepath.Join(os.TempDir(), "logagent")
	_ = os.MkdirAll(tmp, 0o755)
	return tmp
}

// DefaultStorePath is the sqlite file used when store.path is unset.
func DefaultStorePath() string {
	return filepath.Join(StateDir(), "logs.db")
}
