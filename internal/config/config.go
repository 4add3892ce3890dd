// Package config parses command-line flags, with LOCALBOARD_* environment
// variables as fallbacks.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

const envPrefix = "LOCALBOARD_"

// Config holds both host and client settings. Link is set only when the
// first positional argument is a share link, which selects client mode.
type Config struct {
	Addr              string
	Debug             bool
	MDNS              bool
	SimplifyTolerance float64
	CursorRate        float64
	SendBuffer        int
	MaxMessageBytes   int64
	ShutdownTimeout   time.Duration

	Link     string
	Name     string
	Codec    string
	PDF      string
	Discover bool
}

// Load parses args (without the program name). getenv may be nil.
func Load(args []string, getenv func(string) string) (Config, error) {
	var c Config
	fs := flag.NewFlagSet("localboard", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.Addr, "addr", ":8888", "listen address")
	fs.BoolVar(&c.Debug, "debug", false, "development logging")
	fs.BoolVar(&c.MDNS, "mdns", true, "advertise the server on the LAN")
	fs.Float64Var(&c.SimplifyTolerance, "simplify-tolerance", 0, "re-simplify incoming strokes (0 disables)")
	fs.Float64Var(&c.CursorRate, "cursor-rate", 60, "max cursor events per second per connection (0 disables)")
	fs.IntVar(&c.SendBuffer, "send-buffer", 256, "outbound queue depth per connection")
	fs.Int64Var(&c.MaxMessageBytes, "max-message-bytes", 1<<20, "websocket read limit")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", 5*time.Second, "graceful shutdown bound")

	fs.StringVar(&c.Name, "name", "", "display name in client mode")
	fs.StringVar(&c.Codec, "codec", "json", "wire codec in client mode: json or msgpack")
	fs.StringVar(&c.PDF, "pdf", "", "client mode: write the board to this PDF on exit")
	fs.BoolVar(&c.Discover, "discover", false, "list board servers on the LAN and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := applyEnv(fs, getenv); err != nil {
		return Config{}, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		c.Link = rest[0]
	}
	return c, c.validate()
}

// applyEnv fills flags not given on the command line from the environment.
func applyEnv(fs *flag.FlagSet, getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] {
			return
		}
		key := envPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if v := getenv(key); v != "" {
			if err := fs.Set(f.Name, v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	})
	return errors.Join(errs...)
}

func (c Config) validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr must not be empty")
	case c.SimplifyTolerance < 0:
		return errors.New("simplify-tolerance must be >= 0")
	case c.CursorRate < 0:
		return errors.New("cursor-rate must be >= 0")
	case c.SendBuffer <= 0:
		return errors.New("send-buffer must be > 0")
	case c.MaxMessageBytes <= 0:
		return errors.New("max-message-bytes must be > 0")
	case c.ShutdownTimeout <= 0:
		return errors.New("shutdown-timeout must be > 0")
	case c.Codec != "json" && c.Codec != "msgpack":
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	return nil
}
