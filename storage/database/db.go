package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/zhuluh247/MySchool/core"
	appfs "github.com/zhuluh247/MySchool/fs"
	badgerdb "github.com/zhuluh247/MySchool/storage/database/badger"
	inmemdb "github.com/zhuluh247/MySchool/storage/database/inmem"
	sqlxdb "github.com/zhuluh247/MySchool/storage/database/sqlx"
)

const migrationsDir = "migrations"

var ErrUnknownDriver = errors.New("unknown database driver")

// dsn builds the connection URL of dbName, as the admin user when admin is set and one is configured.
func dsn(conf *core.Config, dbName string, admin bool) string {
	c := conf.Database
	user := url.UserPassword(c.User, c.Password)
	if admin && c.AdminUser != "" {
		user = url.UserPassword(c.AdminUser, c.AdminPassword)
	}
	sslMode := "require"
	if c.DisableTLS {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   c.Engine,
		User:     user,
		Host:     c.Address(),
		Path:     dbName,
		RawQuery: url.Values{"sslmode": {sslMode}, "timezone": {"utc"}}.Encode(),
	}
	return u.String()
}

// Open opens the application's postgres database.
func Open(conf *core.Config) (*sql.DB, error) {
	return sql.Open(conf.Database.Engine, dsn(conf, conf.Database.Name, false))
}

// waitReady pings db until it answers, backing off a little more after each attempt.
func waitReady(ctx context.Context, db *sql.DB) error {
	const attempts = 30
	var err error
	for i := 1; i <= attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for database")
		case <-time.After(time.Duration(i) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "database not ready")
}

func exists(ctx context.Context, db *sql.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, query, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, err
}

// ensureRole creates the application role unless it exists.
func ensureRole(ctx context.Context, db *sql.DB, c core.DatabaseConfig) error {
	if c.User == "" {
		return nil
	}
	found, err := exists(ctx, db, "SELECT true FROM pg_roles WHERE rolname = $1", c.User)
	if err != nil || found {
		return errors.Wrap(err, "looking up role")
	}
	// identifiers and passwords cannot be bound as parameters
	q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD %s", pq.QuoteIdentifier(c.User), pq.QuoteLiteral(c.Password))
	_, err = db.ExecContext(ctx, q)
	return errors.Wrap(err, "creating role")
}

// ensureDatabase creates the application database unless it exists.
func ensureDatabase(ctx context.Context, db *sql.DB, name string) error {
	found, err := exists(ctx, db, "SELECT true FROM pg_database WHERE datname = $1", name)
	if err != nil || found {
		return errors.Wrap(err, "looking up database")
	}
	_, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name))
	return errors.Wrap(err, "creating database")
}

// CreateIfNotExist creates the application's role as the admin user, then its database as the application user.
func CreateIfNotExist(ctx context.Context, conf *core.Config) error {
	steps := []struct {
		admin  bool
		ensure func(*sql.DB) error
	}{
		{admin: true, ensure: func(db *sql.DB) error { return ensureRole(ctx, db, conf.Database) }},
		{admin: false, ensure: func(db *sql.DB) error { return ensureDatabase(ctx, db, conf.Database.Name) }},
	}
	for _, step := range steps {
		db, err := sql.Open(conf.Database.Engine, dsn(conf, "postgres", step.admin))
		if err != nil {
			return errors.Wrap(err, "opening database")
		}
		err = waitReady(ctx, db)
		if err == nil {
			err = step.ensure(db)
		}
		_ = db.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// RunMigration runs a goose command against the embedded migrations.
func RunMigration(command string, db *sql.DB, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	return goose.Run(command, db, migrationsDir, args...)
}

// Migrate applies all pending migrations.
func Migrate(db *sql.DB) error {
	if err := RunMigration("up", db); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// OpenGateway opens the core.Gateway selected by conf.Database.Driver.
// The postgres driver creates and migrates the database first.
func OpenGateway(ctx context.Context, conf *core.Config, logger core.Logger) (core.Gateway, error) {
	switch conf.Database.Driver {
	case core.DriverMemory, "":
		return inmemdb.New(), nil

	case core.DriverBadger:
		db, err := badgerdb.Open(badgerdb.Config{Path: conf.Database.BadgerPath, Logger: logger})
		if err != nil {
			return nil, err
		}
		return db, nil

	case core.DriverPostgres:
		if err := CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := Open(conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		if err = db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "pinging database")
		}
		if err = Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return sqlxdb.New(sqlx.NewDb(db, conf.Database.Engine)), nil
	}
	return nil, errors.Wrapf(ErrUnknownDriver, "%q", conf.Database.Driver)
}
