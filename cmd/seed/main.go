// Command seed populates the user directory with development fixtures:
// four admin accounts and twenty-six regular ones sharing a single password.
// Re-running it is safe, existing emails are left untouched.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/avolkov/authgate/internal/flagx"
	"github.com/avolkov/authgate/internal/server/auth"
	"github.com/avolkov/authgate/internal/server/config"
	"github.com/avolkov/authgate/internal/server/models"
	"github.com/avolkov/authgate/internal/server/repositories/repomanager"
)

type seedUser struct {
	Email     string
	FirstName string
	LastName  string
	Role      string
}

func seedUsers() []seedUser {
	users := []seedUser{
		{Email: "admin1@example.com", FirstName: "Admin", LastName: "One", Role: models.RoleAdmin},
		{Email: "admin2@example.com", FirstName: "Admin", LastName: "Two", Role: models.RoleAdmin},
		{Email: "admin3@example.com", FirstName: "Admin", LastName: "Three", Role: models.RoleAdmin},
		{Email: "admin4@example.com", FirstName: "Admin", LastName: "Four", Role: models.RoleAdmin},
	}
	for i := 1; i <= 26; i++ {
		users = append(users, seedUser{
			Email:     fmt.Sprintf("user%d@example.com", i),
			FirstName: "User",
			LastName:  fmt.Sprintf("User%d", i),
			Role:      models.RoleUser,
		})
	}
	return users
}

func readSeedPassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Print("Seed password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", fmt.Errorf("empty password")
	}
	return string(b), nil
}

func run(ctx context.Context, dsn, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return err
	}

	inserted := 0
	for _, u := range seedUsers() {
		res, err := db.ExecContext(ctx,
			`INSERT INTO users (email, first_name, last_name, password_hash, is_active, role)
			 VALUES ($1, $2, $3, $4, TRUE, $5)
			 ON CONFLICT (email) DO NOTHING`,
			u.Email, u.FirstName, u.LastName, hash, u.Role,
		)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", u.Email, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
			log.Printf("added %s (%s)", u.Email, u.Role)
		}
	}

	log.Printf("done, %d new accounts", inserted)
	return nil
}

func main() {
	args := flagx.FilterArgs(os.Args[1:], []string{"-p"})

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	passwordFlag := fs.String("p", "", "password for all seeded accounts (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("%v", err)
	}

	cfg := config.LoadConfig()

	password, err := readSeedPassword(*passwordFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := run(context.Background(), cfg.DatabaseDSN, password); err != nil {
		log.Fatalf("%v", err)
	}
}
