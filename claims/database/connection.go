package database

import (
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pkg/errors"

	"github.com/medtrack/claims-app/conf"
	"github.com/medtrack/claims-app/log"
)

type Config struct {
	DatabaseURL string

	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	ConnMaxIdleTimeSec int

	PingRetries int
	PingWaitSec int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        conf.GetEnv("DATABASE_URL"),
		MaxOpenConns:       conf.GetEnvInt("CLAIMS_DB_MAX_OPEN_CONNS", 40),
		MaxIdleConns:       conf.GetEnvInt("CLAIMS_DB_MAX_IDLE_CONNS", 20),
		ConnMaxLifetimeMin: conf.GetEnvInt("CLAIMS_DB_CONN_MAX_LIFETIME_MIN", 5),
		ConnMaxIdleTimeSec: conf.GetEnvInt("CLAIMS_DB_CONN_MAX_IDLE_TIME", 30),
		PingRetries:        conf.GetEnvInt("CLAIMS_DB_PING_RETRIES", 5),
		PingWaitSec:        conf.GetEnvInt("CLAIMS_DB_PING_WAIT_SEC", 2),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("invalid config, DATABASE_URL must be set")
	}

	return cfg, nil
}

// Connect opens the claims database and verifies connectivity. The initial
// ping is retried with a fixed wait because the database container can come
// up after the API in local and test environments.
func Connect(cfg *Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "could not open claims database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMin) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeSec) * time.Second)

	b := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(time.Duration(cfg.PingWaitSec)*time.Second),
		uint64(cfg.PingRetries))

	err = backoff.RetryNotify(db.Ping, b, func(err error, d time.Duration) {
		log.API.Warnf("database ping failed, retrying in %s: %s", d, err.Error())
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not connect to claims database")
	}

	return db, nil
}
