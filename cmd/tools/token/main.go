// Command token mints an access token for local testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/quotedesk/internal/auth"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/config"
)

func main() {
	userID := flag.String("user", "", "subject user id (random when empty)")
	name := flag.String("name", "Dev Seller", "display name")
	role := flag.String("role", "sales", "role claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(2)
	}
	svc, err := auth.NewService(auth.Config{
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: *ttl,
		Issuer:         cfg.JWTIssuer,
		Audience:       cfg.JWTAudience,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(2)
	}
	if *userID == "" {
		*userID = uuid.NewString()
	}
	tok, exp, err := svc.SignAccessToken(common.Principal{UserID: *userID, Name: *name, Role: *role})
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
}
