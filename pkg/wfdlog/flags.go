package wfdlog

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags.
type Flags struct {
	LogLevel     string
	LogFormat    string
	LogFile      string
	DebugRTSP    bool
	DebugWPA     bool
	DebugSession bool
	DebugMedia   bool
	DebugAll     bool
}

// RegisterFlags registers logging flags with fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info", "Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text", "Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "", "Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "", "Log output file path (shorthand)")

	fs.BoolVar(&f.DebugRTSP, "debug-rtsp", false, "Enable RTSP decoder debugging (id-lines, header dispatch)")
	fs.BoolVar(&f.DebugWPA, "debug-wpa", false, "Enable supplicant control-channel debugging (requests, events)")
	fs.BoolVar(&f.DebugSession, "debug-session", false, "Enable session dispatcher debugging")
	fs.BoolVar(&f.DebugMedia, "debug-media", false, "Enable media depacketization/pacing debugging")
	fs.BoolVar(&f.DebugAll, "debug-all", false, "Enable all debug categories")

	return f
}

// ToConfig converts Flags to a logger Config.
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	cfg.OutputFile = f.LogFile

	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		cfg.Level = LevelDebug
	} else {
		if f.DebugRTSP {
			cfg.EnableCategory(DebugRTSP)
			cfg.Level = LevelDebug
		}
		if f.DebugWPA {
			cfg.EnableCategory(DebugWPA)
			cfg.Level = LevelDebug
		}
		if f.DebugSession {
			cfg.EnableCategory(DebugSession)
			cfg.Level = LevelDebug
		}
		if f.DebugMedia {
			cfg.EnableCategory(DebugMedia)
			cfg.Level = LevelDebug
		}
	}

	return cfg, nil
}

// PrintUsageExamples prints example invocations for logging flags.
func PrintUsageExamples() {
	fmt.Println(`
Logging examples:

  Basic usage (INFO level, text format to stdout):
    ./wfdmonitor

  Enable DEBUG level:
    ./wfdmonitor --log-level debug

  Log to file in JSON:
    ./wfdmonitor --log-format json -o wfdmonitor.json

  Debug the supplicant control channel only:
    ./wfdmonitor --debug-wpa

  Debug everything:
    ./wfdmonitor --debug-all -o debug.log
`)
}

// String returns a one-line summary of the enabled flags.
func (f *Flags) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	var cats []string
	if f.DebugAll {
		cats = append(cats, "all")
	} else {
		if f.DebugRTSP {
			cats = append(cats, "rtsp")
		}
		if f.DebugWPA {
			cats = append(cats, "wpa")
		}
		if f.DebugSession {
			cats = append(cats, "session")
		}
		if f.DebugMedia {
			cats = append(cats, "media")
		}
	}
	if len(cats) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(cats, ",")))
	}

	return strings.Join(parts, " ")
}
