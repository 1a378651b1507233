package main

import (
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/storage/database"
)

var gooseRunFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(args []string) error {
	db, err := cli.openDB()
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	if db != nil {
		defer db.Close()
	}
	return gooseRunFunc(args[0], db, args[1:]...)
}
