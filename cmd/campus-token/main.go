package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/campushq/campus/pkg/auth"
	"github.com/campushq/campus/pkg/users"
)

// campus-token mints an API token for an existing user. The raw token is
// printed once; only its hash is stored.
func main() {
	email := flag.String("email", "", "Email of the user to issue a token for")
	name := flag.String("name", "cli", "Label for the token")
	ttl := flag.Duration("ttl", 0, "Token lifetime (0 means no expiry)")
	postgresURL := flag.String("postgres-url", os.Getenv("CAMPUS_POSTGRES_URL"), "PostgreSQL connection URL")
	flag.Parse()

	if *email == "" {
		log.Fatal("-email is required")
	}
	if *postgresURL == "" {
		log.Fatal("-postgres-url or CAMPUS_POSTGRES_URL is required")
	}

	db, err := sql.Open("postgres", *postgresURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	store := users.NewPostgresStore(db)

	user, err := store.GetByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("Failed to look up user: %v", err)
	}

	token, tokenHash, tokenPrefix, err := auth.NewTokenGenerator().GenerateToken()
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	var expiresAt *time.Time
	if *ttl > 0 {
		t := time.Now().Add(*ttl)
		expiresAt = &t
	}

	if err := store.CreateToken(ctx, user.ID, tokenHash, *name, expiresAt); err != nil {
		log.Fatalf("Failed to store token: %v", err)
	}

	fmt.Printf("Token for %s (%s):\n%s\n", user.Email, tokenPrefix, token)
	if expiresAt != nil {
		fmt.Printf("Expires: %s\n", expiresAt.Format(time.RFC3339))
	}
}
