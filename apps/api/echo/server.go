package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iba-dss/hxd-api/core"
	"github.com/iba-dss/hxd-api/core/registration"
	sheetsvc "github.com/iba-dss/hxd-api/services/sheets"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		RegSvc     *registration.Service
		Sheet      *sheetsvc.Client
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home(conf))
	s.app.Any("/api/submit", submissionProxy(s.deps.Sheet, s.deps.Logger))

	v1 := s.app.Group("/v1")
	registerRegistrationAPI(v1, s.deps.RegSvc, s.deps.Validate)
}

// Start serves the API and blocks until shutdown. Server errors surface on
// Errors(); SIGINT/SIGTERM on ShutdownSignal().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errs <- err
	}
}

func (s *Server) Errors() <-chan error            { return s.errs }
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// signalShutdown requests a graceful shutdown; called when an integrity-loss
// error is caught by the error handler.
func (s *Server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }
func (s *Server) Close() error                       { return s.app.Close() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(conf *core.Config) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to the "+conf.AppName+" API!")
	}
}
