package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/behavior"
	"github.com/zhuluh247/MySchool/core/class"
	"github.com/zhuluh247/MySchool/core/dashboard"
	"github.com/zhuluh247/MySchool/core/document"
	"github.com/zhuluh247/MySchool/core/result"
	"github.com/zhuluh247/MySchool/core/student"
	"github.com/zhuluh247/MySchool/core/subject"
	"github.com/zhuluh247/MySchool/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc      *user.Service
		StudentSvc   *student.Service
		ClassSvc     *class.Service
		SubjectSvc   *subject.Service
		ResultSvc    *result.Service
		BehaviorSvc  *behavior.Service
		DocumentSvc  *document.Service
		ActivitySvc  *activity.Service
		DashboardSvc *dashboard.Service
	}

	Server struct {
		deps ServerDeps
		app  *echo.Echo
		auth *authenticator

		errors     chan error
		shutdown   chan os.Signal
		notifyOnce sync.Once
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(countRequests)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/metrics", metricsHandler())
	if conf.Storage.Driver == core.StorageLocal || conf.Storage.Driver == "" {
		s.app.Static("/files", conf.Storage.LocalDir)
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	authed := v1.Group("", jwt, s.sessionMiddleware)

	registerAuthAPI(v1, jwt, s)
	registerUserAPI(authed, s)
	registerStudentAPI(authed, s)
	registerClassAPI(authed, s)
	registerSubjectAPI(authed, s)
	registerResultAPI(authed, s)
	registerBehaviorAPI(authed, s)
	registerDocumentAPI(authed, s)
	registerDashboardAPI(authed, s)
}

// Start listens on conf.Server.Address. Listener errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal delivers SIGINT, SIGTERM and the shutdowns requested by the error handler.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	s.notifyOnce.Do(func() {
		signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	})
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to MySchool API!")
}
