package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/csrf"
	"github.com/gorilla/securecookie"
	"github.com/jessevdk/go-flags"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Decentr-net/go-api/health"
	"github.com/Decentr-net/logrus/sentry"

	"github.com/agoranet/stoa/internal/backend"
	"github.com/agoranet/stoa/internal/backend/postgrest"
	"github.com/agoranet/stoa/internal/metrics"
	"github.com/agoranet/stoa/internal/server"
	"github.com/agoranet/stoa/internal/session"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Host string `long:"http.host" env:"HTTP_HOST" default:"0.0.0.0" description:"IP to listen on"`
	Port int    `long:"http.port" env:"HTTP_PORT" default:"8080" description:"port to listen on for insecure connections, defaults to a random value"`

	BackendURL     string        `long:"backend.url" env:"BACKEND_URL" default:"http://localhost:54321" description:"hosted data service url"`
	BackendAPIKey  string        `long:"backend.api_key" env:"BACKEND_API_KEY" description:"hosted data service anon api key"`
	BackendTimeout time.Duration `long:"backend.timeout" env:"BACKEND_TIMEOUT" default:"10s" description:"timeout for requests to the data service"`

	AuthURL string `long:"auth.url" env:"AUTH_URL" default:"http://localhost:54321/auth/v1/authorize" description:"external authentication entry point"`

	SessionSecret string `long:"session.secret" env:"SESSION_SECRET" description:"secret for cookie sessions, random when empty"`
	SessionMaxAge int    `long:"session.max_age" env:"SESSION_MAX_AGE" default:"86400" description:"cookie session lifetime in seconds"`
	CookieSecure  bool   `long:"cookie.secure" env:"COOKIE_SECURE" description:"set secure flag on cookies"`

	RequestTimeout time.Duration `long:"request.timeout" env:"REQUEST_TIMEOUT" default:"45s" description:"request processing timeout"`

	LogLevel  string `long:"log.level" env:"LOG_LEVEL" default:"info" description:"Log level" choice:"debug" choice:"info" choice:"warning" choice:"error"`
	SentryDSN string `long:"sentry.dsn" env:"SENTRY_DSN" description:"sentry dsn"`
}{}

var errTerminated = errors.New("terminated")

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Stoa Web"
	parser.LongDescription = "Stoa Web"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	lvl, _ := logrus.ParseLevel(opts.LogLevel) // err will always be nil
	logrus.SetLevel(lvl)

	logrus.Info("service started")
	logrus.Infof("%+v", opts)

	if opts.SentryDSN != "" {
		hook, err := sentry.NewHook(sentry.Options{
			Dsn:              opts.SentryDSN,
			AttachStacktrace: true,
			Release:          health.GetVersion(),
			ServerName:       "web",
		}, logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel)

		if err != nil {
			logrus.WithError(err).Fatal("failed to init sentry")
		}

		logrus.AddHook(hook)
	} else {
		logrus.Info("empty sentry dsn")
		logrus.Warn("skip sentry initialization")
	}

	c := mustGetBackend()
	sess := session.New([]byte(opts.SessionSecret), opts.SessionMaxAge, opts.CookieSecure)
	m := metrics.New(prometheus.DefaultRegisterer)

	r := chi.NewMux()
	server.SetupRouter(c, sess, m, r, opts.RequestTimeout, opts.AuthURL)

	r.Get("/health", health.Handler(
		5*time.Second,
		c,
	))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	csrfKey := []byte(opts.SessionSecret)
	if len(csrfKey) == 0 {
		csrfKey = securecookie.GenerateRandomKey(32)
	}

	protect := csrf.Protect(
		csrfKey,
		csrf.Secure(opts.CookieSecure),
		csrf.Path("/"),
	)

	srv := http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: protect(r),
	}

	ctx, cancel := context.WithCancel(context.Background())

	gr, _ := errgroup.WithContext(ctx)
	gr.Go(srv.ListenAndServe)
	gr.Go(func() error {
		<-ctx.Done()

		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()

		return srv.Shutdown(sctx)
	})
	gr.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

		s := <-sigs

		logrus.Infof("terminating by %s signal", s)

		cancel()

		return errTerminated
	})

	logrus.Info("service started")

	if err := gr.Wait(); err != nil && !errors.Is(err, errTerminated) && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("web service unexpectedly closed")
	}
}

func mustGetBackend() backend.Client {
	if opts.BackendAPIKey == "" {
		logrus.Fatal("empty backend api key")
	}

	return postgrest.New(&http.Client{Timeout: opts.BackendTimeout}, opts.BackendURL, opts.BackendAPIKey)
}
