package pool

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithProber installs the external probe collaborator the Health
// Monitor calls on every tick. Defaults to NopProber.
func WithProber(p Prober) Option {
	return func(pl *Pool) { pl.prober = p }
}

// WithOpener installs the optional connection-open hook the Creator
// calls when minting a new connection. Defaults to nil (no I/O).
func WithOpener(o Opener) Option {
	return func(pl *Pool) { pl.opener = o }
}

// WithLogger overrides the pool's zerolog logger. Defaults to a
// console writer at info level, named after the pool.
func WithLogger(l zerolog.Logger) Option {
	return func(pl *Pool) {
		pl.log = l
		pl.hasLogger = true
	}
}

// WithName sets the pool's instance name, used as the "pool" label on
// every Prometheus metric and in log lines. Defaults to "default".
func WithName(name string) Option {
	return func(pl *Pool) { pl.name = name }
}

// WithRegisterer overrides the Prometheus registerer metrics are
// registered against. Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(pl *Pool) { pl.registerer = reg }
}

func defaultLogger(name string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(zerolog.InfoLevel).
		With().Timestamp().Str("component", "rpcpool").Str("pool", name).Logger()
}
