// Package main provides a CLI tool for generating student tokens for the proctor API.
// Tokens signed with the dev key only work against a server without JWT_SIGNING_KEY.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	jwttoken "proctor/internal/jwt_token"
	"proctor/internal/platform/config"
	id "proctor/pkg/domain"
)

const defaultTokenTTL = 2 * time.Hour

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	accessCmd := flag.NewFlagSet("access", flag.ExitOnError)
	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)

	accessUserID := accessCmd.String("user-id", "", "Student ID (UUID). Generated if empty.")
	accessTTL := accessCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	accessJSON := accessCmd.Bool("json", false, "Output as JSON")

	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Signing key, issuer and audience come from the same env as the server.
	cfg := config.FromEnv()

	switch os.Args[1] {
	case "access":
		_ = accessCmd.Parse(os.Args[2:])
		generateAccessToken(cfg, *accessUserID, *accessTTL, *accessJSON)
	case "admin":
		_ = adminCmd.Parse(os.Args[2:])
		showAdminToken(cfg, *adminJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate tokens for the proctor API

Reads JWT_SIGNING_KEY, JWT_ISSUER, JWT_AUDIENCE and ADMIN_API_TOKEN like the server.
Without JWT_SIGNING_KEY the development key is used.

Usage:
  tokengen <command> [flags]

Commands:
  access    Generate a student access token (JWT)
  admin     Show the admin API token

Examples:
  # Generate a student token for a new random student
  tokengen access

  # Generate a token for a known student, valid for one exam sitting
  tokengen access -user-id "550e8400-e29b-41d4-a716-446655440000" -ttl 3h

  # Output as JSON
  tokengen access -json

Use "tokengen <command> -h" for more information about a command.`)
}

func generateAccessToken(cfg config.Server, userID string, ttl time.Duration, jsonOutput bool) {
	uid := parseOrGenerateUUID(userID, "user-id")
	svc := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience, ttl)

	token, jti, err := svc.GenerateAccessToken(context.Background(), id.UserID(uid), jwttoken.RoleStudent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	keyType := "configured"
	if cfg.DevSigningKey() {
		keyType = "dev"
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "access_token",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"user_id": uid.String(),
				"role":    jwttoken.RoleStudent,
				"jti":     jti,
			},
			Usage: map[string]string{
				"header":      "Authorization: Bearer <token>",
				"signing_key": keyType,
			},
		})
		return
	}

	fmt.Println("Student Access Token (JWT)")
	fmt.Println("==========================")
	fmt.Printf("Signing Key: %s\n", keyType)
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Printf("User ID:     %s\n", uid)
	fmt.Printf("JTI:         %s\n", jti)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/tests/<test-id>/policy")
}

func showAdminToken(cfg config.Server, jsonOutput bool) {
	if cfg.AdminAPIToken == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_API_TOKEN is not set; the server does not mount admin routes without it")
		os.Exit(1)
	}
	if jsonOutput {
		printJSON(tokenOutput{
			Token: cfg.AdminAPIToken,
			Type:  "admin_token",
			Usage: map[string]string{
				"header": "X-Admin-Token: " + cfg.AdminAPIToken,
			},
		})
		return
	}
	fmt.Println("Admin API Token")
	fmt.Println("===============")
	fmt.Printf("Token: %s\n", cfg.AdminAPIToken)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -X POST -H \"X-Admin-Token: " + cfg.AdminAPIToken + "\" http://localhost:8080/admin/tests/<test-id>/otp")
}

func parseOrGenerateUUID(input, fieldName string) uuid.UUID {
	if input == "" {
		return uuid.New()
	}
	parsed, err := uuid.Parse(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s UUID: %s\n", fieldName, input)
		os.Exit(1)
	}
	return parsed
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
