// tokengen mints an access token for exercising the authenticated API
// during development, signed with the same JWT_SECRET the server
// verifies with.  The token is printed to stdout; the expiry goes to
// stderr so the output can be piped straight into a curl header.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/parking-reservation/internal/utils"
)

func main() {
	userID := flag.Uint64("user", 1, "subject (sub claim) of the token")
	role := flag.String("role", "USER", "role claim")
	ttl := flag.Int("ttl", 60, "lifetime in minutes")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	tok, err := utils.NewAccessToken(secret, *userID, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
