// Package cli contains the non-server commands of the binary.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mrlokans/repairhub/internal/auth"
	"github.com/mrlokans/repairhub/internal/config"
	"github.com/mrlokans/repairhub/internal/database"
	"github.com/mrlokans/repairhub/internal/database/repairs"
	"github.com/mrlokans/repairhub/internal/database/users"
	"github.com/mrlokans/repairhub/internal/entities"
)

// seedAccount is one demo account to create.
type seedAccount struct {
	username string
	email    string
	password string
	isAdmin  bool
}

// seedAccounts are the demo accounts. Passwords equal usernames; this data
// exists for local development only.
var seedAccounts = []seedAccount{
	{"admin", "admin@ex.com", "admin", true},
	{"user", "user@ex.com", "user", false},
	{"test", "test@ex.com", "test", false},
}

// SeedCommand populates the database with demo accounts and a few repair
// requests.
type SeedCommand struct {
	DatabasePath string
	WithRepairs  bool
}

// NewSeedCommand creates a new SeedCommand.
func NewSeedCommand() *SeedCommand {
	return &SeedCommand{}
}

// ParseFlags parses command line flags.
func (cmd *SeedCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.BoolVar(&cmd.WithRepairs, "with-repairs", true, "Also create sample repair requests")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s seed [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create the demo accounts (admin/admin, user/user, test/test) and sample data.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

// Run executes the seeding.
func (cmd *SeedCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	userRepo := users.NewRepository(db.DB)
	repairRepo := repairs.NewRepository(db.DB)

	created := make(map[string]uint)
	for _, account := range seedAccounts {
		hash, err := auth.HashPassword(account.password, 10)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", account.username, err)
		}

		user := &entities.User{
			Username:     account.username,
			Email:        account.email,
			PasswordHash: hash,
			IsAdmin:      account.isAdmin,
		}
		if err := userRepo.Create(user); err != nil {
			existing, lookupErr := userRepo.GetByUsername(account.username)
			if lookupErr != nil {
				return fmt.Errorf("create %s: %w", account.username, err)
			}
			created[account.username] = existing.ID
			fmt.Printf("Account %s already exists, skipping\n", account.username)
			continue
		}
		created[account.username] = user.ID

		role := "user"
		if account.isAdmin {
			role = "admin"
		}
		fmt.Printf("Created %s / %s (%s)\n", account.username, account.password, role)
	}

	if cmd.WithRepairs {
		if err := cmd.seedRepairs(repairRepo, created); err != nil {
			return err
		}
	}

	return nil
}

// seedRepairs adds a few requests in different lifecycle stages.
func (cmd *SeedCommand) seedRepairs(repo *repairs.Repository, accounts map[string]uint) error {
	userID, ok := accounts["user"]
	if !ok {
		return errors.New("demo account 'user' is missing")
	}
	testID, ok := accounts["test"]
	if !ok {
		return errors.New("demo account 'test' is missing")
	}

	existing, err := repo.ListByUser(userID)
	if err != nil {
		return fmt.Errorf("check existing repairs: %w", err)
	}
	if len(existing) > 0 {
		fmt.Println("Sample repair requests already exist, skipping")
		return nil
	}

	nextWeek := time.Now().AddDate(0, 0, 7)
	samples := []entities.RepairRequest{
		{UserID: userID, Description: "Washing machine leaks during the spin cycle", RequiredTime: &nextWeek},
		{UserID: userID, Description: "Kitchen tap drips constantly", Status: entities.RepairStatusInProgress},
		{UserID: testID, Description: "Bedroom radiator stays cold", Status: entities.RepairStatusDone},
	}
	for i := range samples {
		if err := repo.Create(&samples[i]); err != nil {
			return fmt.Errorf("create sample repair: %w", err)
		}
	}

	fmt.Printf("Created %d sample repair requests\n", len(samples))
	return nil
}
