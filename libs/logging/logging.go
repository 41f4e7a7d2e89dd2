package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

var (
	// we are not promising to get every log message in the log,
	// when it comes down to it we would rather the service runs
	// than fails on log writing contention. This counter lets us
	// see how many logs we are dropping.
	droppedLogTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dropped_log_events_total",
			Help: "A counter for the number of dropped log messages",
		},
	)
)

func init() {
	prometheus.MustRegister(droppedLogTotal)
}

// Config controls logger construction.
type Config struct {
	Env    string
	Level  zerolog.Level
	Writer io.Writer
}

// SetupLogger constructs a logger and associates it with the context.
func SetupLogger(ctx context.Context, conf Config) (context.Context, *zerolog.Logger) {
	var writer io.Writer

	switch {
	case conf.Writer != nil:
		writer = conf.Writer
	case conf.Env != "local" && conf.Env != "":
		// ring buffered writer which drops messages that cannot be
		// processed in a timely manner
		writer = diode.NewWriter(os.Stdout, 1000, 20*time.Millisecond, func(missed int) {
			droppedLogTotal.Add(float64(missed))
		})
	default:
		writer = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	l := zerolog.New(writer).With().Timestamp().Logger().Level(conf.Level)

	return l.WithContext(ctx), &l
}

// Logger retrieves the context logger scoped with a module prefix,
// creating a default one when the context carries none.
func Logger(ctx context.Context, prefix string) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		_, l = SetupLogger(ctx, Config{Env: "local"})
	}
	sl := l.With().Str("module", prefix).Logger()
	return &sl
}

// FromContext retrieves the logger from context or builds a new one.
func FromContext(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		_, l = SetupLogger(ctx, Config{Env: "local"})
	}
	return l
}
