// Command ridectl runs operator tasks against the ride store: applying the
// schema, recording vehicle document reviews and suspending accounts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/ride-hailing/internal/config"
	"github.com/iliyamo/ride-hailing/internal/database"
	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/repository"
	"github.com/iliyamo/ride-hailing/internal/service"
)

const usage = `usage: ridectl [--env-file FILE] <command> [flags]

commands:
  migrate                                   apply the schema for DB_DRIVER
  vehicle-verify <id> --status <status>     set approved | rejected | expired | pending
  account-status <id> --status <status>     set active | inactive | suspended | banned
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ridectl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := pflag.NewFlagSet("ridectl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	envFile := global.String("env-file", ".env", "dotenv file to load")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errors.New("missing command")
	}
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}

	switch rest[0] {
	case "migrate":
		return withDB(func(ctx context.Context, db *database.DB) error {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Printf("schema applied (%s)\n", db.Driver)
			return nil
		})
	case "vehicle-verify":
		return vehicleVerify(rest[1:])
	case "account-status":
		return accountStatus(rest[1:])
	}
	global.Usage()
	return fmt.Errorf("unknown command %q", rest[0])
}

func vehicleVerify(args []string) error {
	fs := pflag.NewFlagSet("vehicle-verify", pflag.ContinueOnError)
	status := fs.StringP("status", "s", "", "approved | rejected | expired | pending")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("vehicle-verify needs exactly one vehicle id")
	}
	id := fs.Arg(0)
	return withDB(func(ctx context.Context, db *database.DB) error {
		svc := service.NewVehicleService(repository.NewVehicleRepo(db), nil, config.NewLogger(os.Stderr, "warn", "text"))
		v, err := svc.SetVerification(ctx, id, model.VerificationStatus(*status))
		if err != nil {
			return errors.New(service.MessageOf(err))
		}
		fmt.Printf("vehicle %s (%s) verification=%s verified=%t\n", v.ID, v.PlateNumber, v.VerificationStatus, v.IsVerified)
		return nil
	})
}

// accountStatus changes whether an account may sign in. Tokens already
// issued stop working on their next request because JWTAuth reloads the
// account.
func accountStatus(args []string) error {
	fs := pflag.NewFlagSet("account-status", pflag.ContinueOnError)
	status := fs.StringP("status", "s", "", "active | inactive | suspended | banned")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("account-status needs exactly one account id")
	}
	st := model.AccountStatus(*status)
	if !st.Valid() {
		return fmt.Errorf("invalid account status %q", *status)
	}
	id := fs.Arg(0)
	return withDB(func(ctx context.Context, db *database.DB) error {
		err := repository.NewAccountRepo(db).SetStatus(ctx, id, st)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("account %s not found", id)
		}
		if err != nil {
			return err
		}
		fmt.Printf("account %s status=%s\n", id, st)
		return nil
	})
}

// withDB opens the configured store for the duration of fn. Only the
// DB_* variables are read so the tool works without server settings.
func withDB(fn func(ctx context.Context, db *database.DB) error) error {
	driver, err := database.ParseDriver(os.Getenv("DB_DRIVER"))
	if err != nil {
		return err
	}
	db, err := database.Open(database.Options{
		Driver: driver,
		User:   os.Getenv("DB_USER"),
		Pass:   os.Getenv("DB_PASS"),
		Host:   os.Getenv("DB_HOST"),
		Port:   os.Getenv("DB_PORT"),
		Name:   os.Getenv("DB_NAME"),
		Path:   os.Getenv("DB_PATH"),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, db)
}
