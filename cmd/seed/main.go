package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"community-hub/auth"
	"community-hub/domain"
	"community-hub/repositories"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`

	AdminEmail    string `env:"DEMO_ADMIN_EMAIL,default=demo.admin@hub.local"`
	AdminPassword string `env:"DEMO_ADMIN_PASSWORD,default=DemoAdmin123!"`
	AdminName     string `env:"DEMO_ADMIN_NAME,default=Demo Admin"`

	UserEmail    string `env:"DEMO_USER_EMAIL,default=demo.user@hub.local"`
	UserPassword string `env:"DEMO_USER_PASSWORD,default=DemoUser123!"`
	UserName     string `env:"DEMO_USER_NAME,default=Demo User"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run seeds one demo admin, one demo member and two demo groups so a
// fresh database can serve a full conversation out of the box.
func run() error {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	users := repositories.NewUserRepository(db)
	groups := repositories.NewGroupRepository(db)

	adminID, err := seedUser(ctx, users, config.AdminName, config.AdminEmail, config.AdminPassword, domain.RoleAdmin)
	if err != nil {
		return err
	}
	log.Info("Seeded demo admin", "id", adminID, "email", config.AdminEmail)

	userID, err := seedUser(ctx, users, config.UserName, config.UserEmail, config.UserPassword, domain.RoleMember)
	if err != nil {
		return err
	}
	log.Info("Seeded demo user", "id", userID, "email", config.UserEmail)

	demoGroups := []domain.GroupInfo{
		{
			ID:       "demo-open",
			Name:     "Open Lounge",
			IsPublic: true,
			Members: []domain.GroupMember{
				{UserID: adminID}, {UserID: userID},
			},
		},
		{
			ID:       "demo-board",
			Name:     "Board Room",
			IsPublic: false,
			Members: []domain.GroupMember{
				{UserID: adminID},
			},
		},
	}
	for _, g := range demoGroups {
		if err := groups.PutGroup(ctx, g); err != nil {
			return fmt.Errorf("seed group %s: %w", g.ID, err)
		}
		log.Info("Seeded demo group", "id", g.ID, "public", g.IsPublic)
	}

	log.Info("Seeding complete")
	return nil
}

func seedUser(ctx context.Context, users repositories.UserRepository, name, email, password string, role domain.Role) (string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password for %s: %w", email, err)
	}
	id, err := users.CreateUser(ctx, repositories.User{
		Name:         name,
		Email:        email,
		Role:         role,
		Status:       domain.StatusActive,
		PasswordHash: hash,
	})
	if err != nil {
		return "", fmt.Errorf("seed user %s: %w", email, err)
	}
	return id, nil
}
