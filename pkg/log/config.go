package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the coordinator's log output.
type Config struct {
	Level       string `mapstructure:"level"`
	Pretty      bool   `mapstructure:"pretty"`
	ServiceName string `mapstructure:"service_name"`
}

var (
	root zerolog.Logger
	once sync.Once
)

func init() {
	// Usable default for code paths that log before Init runs.
	root = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// New builds a logger per cfg: JSON to stdout by default, a console
// writer when Pretty is set, tagged with the service name so coordinator
// lines stay attributable in aggregated output.
func New(cfg Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str(FieldService, cfg.ServiceName)
	}
	return ctx.Logger()
}

// Init installs the process-wide logger. The first call wins; later
// calls are no-ops. Stdlib log is redirected into the same stream so
// stray log.Printf output stays structured.
func Init(cfg Config) {
	once.Do(func() {
		root = New(cfg)
		stdlog.SetFlags(0)
		stdlog.SetOutput(root.With().Str("source", "stdlog").Logger())
	})
}

// L returns the process-wide logger.
func L() zerolog.Logger {
	return root
}

// parseLevel is forgiving: an unknown or empty level means info rather
// than a startup failure.
func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
