// Command admintoken mints a bearer token for the admin endpoints, signed
// with the server's JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/chatcommerce/assist/internal/auth"
	"github.com/chatcommerce/assist/internal/config"
)

func main() {
	subject := flag.String("subject", "admin", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()

	token, err := auth.SignJWT(*subject, cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
