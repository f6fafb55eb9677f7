package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-tasks"
	"github.com/goliatone/go-tasks/config"
	"github.com/goliatone/go-tasks/rest"
)

func main() {
	cfg, err := config.Load(os.Getenv("TASKS_CONFIG"))
	if err != nil {
		glog.NewLogger(glog.WithName("tasks")).Error("fatal: %v", err)
		os.Exit(1)
	}

	lgr := newLogger(cfg)

	if err := run(cfg, lgr); err != nil {
		lgr.Error("fatal: %v", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *glog.BaseLogger {
	lvl := glog.Info
	switch cfg.Logging.Level {
	case "trace":
		lvl = glog.Trace
	case "debug":
		lvl = glog.Debug
	case "warn":
		lvl = glog.Warn
	case "error":
		lvl = glog.Error
	}

	if cfg.Logging.Pretty {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(lvl),
			glog.WithName("tasks"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}

	return glog.NewLogger(
		glog.WithLevel(lvl),
		glog.WithName("tasks"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

func run(cfg *config.Config, lgr *glog.BaseLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Database.DSN)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to open database")
	}
	defer sqldb.Close()

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := tasks.RunMigrations(ctx, sqldb); err != nil {
		return err
	}

	repo := tasks.NewRepositoryManager(db)
	repo.MustValidate()

	provider := tasks.NewUsersIdentityProvider(repo.Users())
	auther := tasks.NewAuthenticator(provider, cfg).
		WithLogger(lgr.GetLogger("auth"))

	var mailer tasks.Mailer
	if cfg.SMTP.Enabled {
		mailer = &tasks.SMTPMailer{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		}
	} else {
		mailer = tasks.NewLogMailer(lgr.GetLogger("mailer"))
	}

	srv := rest.NewServer(rest.Options{
		Repo:       repo,
		Auther:     auther,
		Policy:     tasks.NewPasswordPolicy(cfg.GetPasswordMinLength()),
		Mailer:     mailer,
		Window:     cfg.GetResetTokenWindow(),
		AuthScheme: cfg.GetAuthScheme(),
		Logger:     lgr.GetLogger("http"),
		AppName:    cfg.App.Name,

		DeterministicIDs: cfg.Auth.DeterministicIDs,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lgr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
