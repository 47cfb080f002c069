package claimscli

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/medtrack/claims-app/claims/auth"
	"github.com/medtrack/claims-app/claims/constants"
	"github.com/medtrack/claims-app/claims/database"
	"github.com/medtrack/claims-app/claims/models"
	"github.com/medtrack/claims-app/claims/models/postgres"
	"github.com/medtrack/claims-app/claims/service"
	"github.com/medtrack/claims-app/claims/servicemux"
	"github.com/medtrack/claims-app/claims/web"
	"github.com/medtrack/claims-app/conf"
	"github.com/medtrack/claims-app/log"
)

const Name = "claims-app"
const Usage = "MedTrack claims administration CLI"

func connectDatabase() (*sql.DB, error) {
	cfg, err := database.LoadConfig()
	if err != nil {
		return nil, err
	}
	return database.Connect(cfg)
}

func GetApp() *cli.App {
	return setUpApp()
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage
	app.Version = constants.Version

	var username, password, displayName, role, migrationDir string

	app.Commands = []cli.Command{
		{
			Name:  "start-api",
			Usage: "Start the API",
			Action: func(c *cli.Context) error {
				db, err := connectDatabase()
				if err != nil {
					return errors.Wrap(err, "could not connect to database")
				}

				repo := postgres.NewRepository(db)
				svc := service.NewService(db, repo, log.API)
				api := web.NewAPI(svc, repo, db)

				fmt.Fprintf(app.Writer, "Starting %s...\n", Name)

				ops := &http.Server{
					Handler:      web.NewHTTPRouter(api),
					ReadTimeout:  5 * time.Second,
					WriteTimeout: 5 * time.Second,
				}

				apiSrv := &http.Server{
					Handler:      web.NewRouter(api),
					ReadTimeout:  time.Duration(conf.GetEnvInt("API_READ_TIMEOUT", 10)) * time.Second,
					WriteTimeout: time.Duration(conf.GetEnvInt("API_WRITE_TIMEOUT", 20)) * time.Second,
					IdleTimeout:  time.Duration(conf.GetEnvInt("API_IDLE_TIMEOUT", 120)) * time.Second,
				}

				port := conf.GetEnv("CLAIMS_API_PORT")
				if port == "" {
					port = "3000"
				}

				smux := servicemux.New(":" + port)
				smux.AddServer(ops, "/_")
				smux.AddServer(apiSrv, "")
				smux.Serve()

				return nil
			},
		},
		{
			Name:     "migrate",
			Category: "Database tools",
			Usage:    "Apply schema migrations",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "dir",
					Usage:       "Directory holding migration files",
					Value:       "db/migrations",
					Destination: &migrationDir,
				},
			},
			Action: func(c *cli.Context) error {
				dbURL := conf.GetEnv("DATABASE_URL")
				if dbURL == "" {
					return errors.New("DATABASE_URL must be set")
				}

				m, err := migrate.New("file://"+migrationDir, dbURL)
				if err != nil {
					return errors.Wrap(err, "could not load migrations")
				}
				if err := m.Up(); err != nil && err != migrate.ErrNoChange {
					return errors.Wrap(err, "migration failed")
				}

				log.API.Info("migrations applied")
				return nil
			},
		},
		{
			Name:     "create-user",
			Category: "User tools",
			Usage:    "Create a user account",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "username", Destination: &username},
				cli.StringFlag{Name: "password", Destination: &password},
				cli.StringFlag{Name: "name", Usage: "Display name", Destination: &displayName},
				cli.StringFlag{Name: "role", Value: "staff", Destination: &role},
			},
			Action: func(c *cli.Context) error {
				if username == "" || password == "" {
					return errors.New("username and password are required")
				}

				db, err := connectDatabase()
				if err != nil {
					return errors.Wrap(err, "could not connect to database")
				}
				defer db.Close()

				repo := postgres.NewRepository(db)
				ctx := context.Background()

				if existing, err := repo.GetUserByUsername(ctx, username); err != nil {
					return err
				} else if existing != nil {
					return fmt.Errorf("user %s already exists", username)
				}

				hash, err := auth.NewHash(password)
				if err != nil {
					return errors.Wrap(err, "could not hash password")
				}

				user := models.User{
					Username:     username,
					DisplayName:  displayName,
					Role:         role,
					PasswordHash: hash.String(),
					Active:       true,
				}
				id, err := repo.CreateUser(ctx, user)
				if err != nil {
					return err
				}

				fmt.Fprintf(app.Writer, "created user %s (id %d)\n", user.Username, id)
				return nil
			},
		},
		{
			Name:     "reset-password",
			Category: "User tools",
			Usage:    "Reset a user's password",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "username", Destination: &username},
				cli.StringFlag{Name: "password", Destination: &password},
			},
			Action: func(c *cli.Context) error {
				if username == "" || password == "" {
					return errors.New("username and password are required")
				}

				db, err := connectDatabase()
				if err != nil {
					return errors.Wrap(err, "could not connect to database")
				}
				defer db.Close()

				repo := postgres.NewRepository(db)
				ctx := context.Background()

				user, err := repo.GetUserByUsername(ctx, username)
				if err != nil {
					return err
				}
				if user == nil {
					return fmt.Errorf("user %s not found", username)
				}

				hash, err := auth.NewHash(password)
				if err != nil {
					return errors.Wrap(err, "could not hash password")
				}

				if err := repo.UpdateUser(ctx, user.ID, map[string]interface{}{
					"password_hash": hash.String(),
				}); err != nil {
					return err
				}

				fmt.Fprintf(app.Writer, "password reset for %s\n", user.Username)
				return nil
			},
		},
	}
	return app
}
