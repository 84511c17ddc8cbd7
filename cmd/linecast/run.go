package main

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/linecast/internal/broadcast"
	"github.com/Tyrowin/linecast/internal/config"
	"github.com/Tyrowin/linecast/internal/console"
	"github.com/Tyrowin/linecast/internal/metrics"
	"github.com/Tyrowin/linecast/internal/relay"
)

// loadConfig layers defaults, the config file, the environment and finally
// the command line flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()

	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg = cfg.FromEnv()

	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("bind") {
		cfg.BindHost = c.String("bind")
	}
	if c.IsSet("console") {
		cfg.ConsoleAddr = c.String("console")
	}
	if c.IsSet("metrics") {
		cfg.MetricsEnabled = c.Bool("metrics")
	}
	if c.IsSet("nats-url") {
		cfg.NATS.URL = c.String("nats-url")
	}
	if c.IsSet("nats-subject") {
		cfg.NATS.Subject = c.String("nats-subject")
	}
	if c.IsSet("poll-interval") {
		cfg.PollInterval = c.Duration("poll-interval")
	}
	if c.IsSet("write-timeout") {
		cfg.WriteTimeout = c.Duration("write-timeout")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	return cfg.Sanitize(), nil
}

func newLogger(w io.Writer, lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	return level.NewFilter(logger, opt)
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []broadcast.Option{
		broadcast.WithLogger(logger),
		broadcast.WithBindHost(cfg.BindHost),
		broadcast.WithPollInterval(cfg.PollInterval),
		broadcast.WithWriteTimeout(cfg.WriteTimeout),
	}
	var set *metrics.Set
	if cfg.MetricsEnabled {
		set = metrics.New()
		opts = append(opts, broadcast.WithMetrics(set.Broadcast))
	}

	host := &hostListener{log: log.With(logger, "module", "host")}
	mgr, err := broadcast.New(cfg.Port, host, opts...)
	if err != nil {
		return err
	}

	submit := mgr.SendMessage
	var con *console.Console
	if cfg.ConsoleAddr != "" {
		copts := console.Options{
			Backend:        mgr,
			AllowedOrigins: cfg.AllowedOrigins,
			MaxMessageSize: cfg.MaxMessageSize,
			RateLimit:      cfg.RateLimit,
			Logger:         logger,
		}
		if set != nil {
			copts.Metrics = set.Handler()
			copts.Observers = set.Observers
		}
		con = console.New(copts)
		host.also = con.Listener()
		submit = con.Submit
	}

	var rel *relay.Relay
	if cfg.NATS.URL != "" {
		rel, err = relay.Dial(cfg.NATS.URL, cfg.NATS.Subject, submitter(submit), logger)
		if err != nil {
			return multierror.Append(err, mgr.Close())
		}
	}

	if con != nil {
		con.Start()
	}
	mgr.Start()
	level.Info(logger).Log("event", "listening", "addr", mgr.Addr(), "console", cfg.ConsoleAddr, "nats", cfg.NATS.URL)

	// a blocked stdin read cannot be cancelled, so it stays out of the group
	go readLines(os.Stdin, submit, logger)

	g, gctx := errgroup.WithContext(ctx)
	if con != nil {
		server := console.CreateServer(cfg.ConsoleAddr, con.Routes())
		g.Go(func() error {
			return console.Serve(gctx, server, c.Duration("shutdown-timeout"))
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-mgr.Done():
		}
		return nil
	})

	result := multierror.Append(nil, g.Wait())
	result = multierror.Append(result, shutdown(mgr, con, rel, c.Duration("shutdown-timeout")))
	level.Info(logger).Log("event", "bye")
	return result.ErrorOrNil()
}

func shutdown(mgr *broadcast.Manager, con *console.Console, rel *relay.Relay, timeout time.Duration) error {
	var result *multierror.Error

	if rel != nil {
		if err := rel.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := mgr.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	select {
	case <-mgr.Done():
	case <-time.After(timeout):
		result = multierror.Append(result, errors.New("broadcast manager did not stop in time"))
	}
	if con != nil {
		if err := con.Shutdown(timeout); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "console shutdown"))
		}
	}
	return result.ErrorOrNil()
}

// readLines submits every non-empty line of r.
func readLines(r io.Reader, submit func(string), logger log.Logger) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		if line := s.Text(); line != "" {
			submit(line)
		}
	}
	if err := s.Err(); err != nil {
		level.Warn(logger).Log("event", "stdin read failed", "err", err)
	}
}

type submitter func(string)

func (s submitter) SendMessage(text string) { s(text) }
