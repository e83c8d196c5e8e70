package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"community-hub/auth"
)

// mktoken mints a signed access token for manual testing against a
// running hub. The secret comes from JWT_SECRET, never from a flag.
func main() {
	userID := flag.String("user", "", "subject user id (required)")
	role := flag.String("role", "member", "role claim: member or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := auth.GenerateToken([]byte(secret), *userID, *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
