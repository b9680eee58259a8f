package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kingrain94/entitlement-api/internal/config"
	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/internal/middleware"
)

// Issues a bearer token signed with JWT_SECRET_KEY, e.g.
//
//	go run scripts/generate_token.go -user u1 -tenant tenant-7 -roles user
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	userID := flag.String("user", "", "User ID for the token")
	roles := flag.String("roles", "user", "Comma-separated list of roles")
	expirationHours := flag.Int("exp", 0, "Token expiration in hours, defaults to JWT_EXPIRATION_HOURS")
	tenantID := flag.String("tenant", "", "Tenant ID for the token, empty for platform administrators")
	email := flag.String("email", "", "Email of the user, used for email-based overrides")
	flag.Parse()

	if *userID == "" {
		log.Fatal("User ID is required")
	}

	var roleList []string
	for _, role := range strings.Split(*roles, ",") {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if !domain.IsValidRole(role) {
			log.Fatalf("Unknown role %q", role)
		}
		roleList = append(roleList, role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecretKey == "" {
		log.Fatal("JWT_SECRET_KEY is not set")
	}
	if *expirationHours > 0 {
		cfg.JWTExpirationHours = *expirationHours
	}

	token, err := middleware.NewAuthMiddleware(cfg).GenerateToken(*userID, *tenantID, *email, roleList)
	if err != nil {
		log.Fatalf("Error signing token: %v", err)
	}

	fmt.Printf("Generated JWT Token:\n%s\n", token)
}
