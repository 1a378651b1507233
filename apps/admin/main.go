package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/zhuluh247/MySchool/core"
	"github.com/zhuluh247/MySchool/core/activity"
	"github.com/zhuluh247/MySchool/core/result"
	"github.com/zhuluh247/MySchool/core/student"
	"github.com/zhuluh247/MySchool/core/subject"
	"github.com/zhuluh247/MySchool/core/user"
	emailsvc "github.com/zhuluh247/MySchool/services/email"
	logsvc "github.com/zhuluh247/MySchool/services/logger"
	"github.com/zhuluh247/MySchool/storage/database"
)

func main() {
	os.Exit(start())
}

func start() int {
	conf := core.NewConfig()
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	cli := commandLine{
		out:    os.Stdout,
		openDB: func() (*sql.DB, error) { return database.Open(conf) },
	}

	// migrate works on the raw connection; every other command needs the services.
	if len(os.Args) > 1 && os.Args[1] != "migrate" {
		gw, err := database.OpenGateway(context.Background(), conf, logger)
		if err != nil {
			std.Printf("\nerror: %s\n", err)
			return 1
		}
		defer gw.Close()

		validate := validator.New()
		translator := core.NewTranslator()
		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		core.ParseEmailTemplates(logger, conf)
		user.LoadCommonPasswords(logger)

		activities := activity.NewService(gw, logger)
		students := student.NewService(gw, activities, validate)
		subjects := subject.NewService(gw, activities, validate)

		cli.validate = validate
		cli.users = user.NewService(gw, students, emailsvc.NewConsoleService(conf, logger), conf, validate)
		cli.results = result.NewService(gw, students, subjects, activities, logger, validate)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		return 1
	}
	return 0
}
