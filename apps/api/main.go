package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/zhuluh247/MySchool/apps/api/echo"
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
	emailsvc "github.com/zhuluh247/MySchool/services/email"
	logsvc "github.com/zhuluh247/MySchool/services/logger"
	"github.com/zhuluh247/MySchool/storage/database"
	"github.com/zhuluh247/MySchool/storage/files"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	ctx := context.Background()

	gw, err := database.OpenGateway(ctx, conf, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = gw.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	fileStore, err := files.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	behavior.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger, conf)
	user.LoadCommonPasswords(logger)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	activities := activity.NewService(gw, logger)
	students := student.NewService(gw, activities, validate)
	subjects := subject.NewService(gw, activities, validate)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Driver)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		UserSvc:      user.NewService(gw, students, mailSvc, conf, validate),
		StudentSvc:   students,
		ClassSvc:     class.NewService(gw, subjects, students, activities, validate),
		SubjectSvc:   subjects,
		ResultSvc:    result.NewService(gw, students, subjects, activities, logger, validate),
		BehaviorSvc:  behavior.NewService(gw, students, activities),
		DocumentSvc:  document.NewService(gw, fileStore, students, activities),
		ActivitySvc:  activities,
		DashboardSvc: dashboard.NewService(gw, activities),
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
