// Command workspaced-token provisions API tokens for the workspace service.
// The server only validates tokens; minting and revoking them is an operator
// action done against the database directly, so a fresh deployment bootstraps
// its first token here.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vKaizen/graduation-backend/pkg/auth"
	"github.com/vKaizen/graduation-backend/pkg/storage/postgres"
)

func main() {
	userID := flag.Int64("user", 0, "User ID the token belongs to")
	name := flag.String("name", "", "Human-readable token name (required when creating)")
	ttl := flag.Duration("ttl", 0, "Token lifetime; zero means no expiry")
	revokeID := flag.Int64("revoke", 0, "Token ID to revoke instead of creating")
	flag.Parse()

	if *userID == 0 {
		flag.Usage()
		log.Fatal("-user is required")
	}

	url := os.Getenv("WORKSPACED_POSTGRES_URL")
	if url == "" {
		log.Fatal("WORKSPACED_POSTGRES_URL must be set")
	}

	db, err := postgres.Connect(postgres.DefaultConnectionConfig(url))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager := auth.NewTokenManager(db)

	if *revokeID != 0 {
		if err := manager.RevokeToken(ctx, *revokeID, *userID); err != nil {
			log.Fatalf("Failed to revoke token: %v", err)
		}
		fmt.Printf("Revoked token %d\n", *revokeID)
		return
	}

	if *name == "" {
		flag.Usage()
		log.Fatal("-name is required when creating a token")
	}

	var expiresAt *time.Time
	if *ttl > 0 {
		t := time.Now().Add(*ttl)
		expiresAt = &t
	}

	plaintext, token, err := manager.CreateToken(ctx, *userID, *name, expiresAt)
	if err != nil {
		log.Fatalf("Failed to create token: %v", err)
	}

	// The plaintext is shown exactly once; only its hash is stored.
	fmt.Printf("Token ID: %d\n", token.ID)
	fmt.Printf("Prefix:   %s\n", token.TokenPrefix)
	if token.ExpiresAt != nil {
		fmt.Printf("Expires:  %s\n", token.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Printf("\n%s\n", plaintext)
}
