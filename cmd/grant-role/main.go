// Command grant-role adds a role to a registered credential. Operators use it
// to promote the first administrator after registering through the API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
	"github.com/phrazzld/storefront-api/internal/config"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/identity"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/platform/postgres"
	"github.com/phrazzld/storefront-api/internal/service/auth"
)

var knownRoles = []string{domain.RoleUser, domain.RoleAdministrator}

// RoleAssigner grants roles to credentials.
type RoleAssigner interface {
	AssignRole(ctx context.Context, email, role string) identity.Result
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, connect); err != nil {
		log.Printf("grant-role: %v", err)
		stop()
		os.Exit(1)
	}
}

// connect builds the credential gateway from the environment configuration.
func connect(ctx context.Context) (RoleAssigner, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	gateway, err := identity.NewService(
		postgres.NewPostgresCredentialStore(db, l),
		auth.NewBcryptHasher(cfg.Auth.BCryptCost),
		jwtService,
		cfg.Auth,
		l,
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return gateway, db.Close, nil
}

func run(
	ctx context.Context,
	args []string,
	out io.Writer,
	connect func(context.Context) (RoleAssigner, func() error, error),
) error {
	fs := flag.NewFlagSet("grant-role", flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "email of the registered credential")
	role := fs.String("role", domain.RoleAdministrator, "role to grant: "+strings.Join(knownRoles, ", "))
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}
	if !slices.Contains(knownRoles, *role) {
		return fmt.Errorf("unknown role %q", *role)
	}

	assigner, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	res := assigner.AssignRole(ctx, *email, *role)
	if !res.Success {
		return fmt.Errorf("could not grant %s to %s: %s", *role, *email, strings.Join(res.Errors, "; "))
	}
	_, err = fmt.Fprintf(out, "granted %s to %s\n", *role, domain.NormalizeEmail(*email))
	return err
}
