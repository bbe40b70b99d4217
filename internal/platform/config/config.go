package config

import (
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	devSigningKey   = "dev-secret-key-change-in-production"
	DefaultIssuer   = "http://localhost:8080"
	DefaultAudience = "proctor-client"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	LogLevel       string
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	AdminAPIToken  string
	CatalogPath    string
	TrustedProxies []netip.Prefix
	MaxBodyBytes   int64
	OTP            OTP
}

// OTP tunes bypass code issuance and verification lockout.
type OTP struct {
	TTL         time.Duration
	MaxAttempts int
	Lockout     time.Duration
	BcryptCost  int
}

// FromEnv builds the server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:           envOr("PROCTOR_ADDR", ":8080"),
		LogLevel:       envOr("PROCTOR_LOG_LEVEL", "info"),
		JWTSigningKey:  envOr("JWT_SIGNING_KEY", devSigningKey),
		JWTIssuer:      envOr("JWT_ISSUER", DefaultIssuer),
		JWTAudience:    envOr("JWT_AUDIENCE", DefaultAudience),
		AdminAPIToken:  os.Getenv("ADMIN_API_TOKEN"),
		CatalogPath:    os.Getenv("PROCTOR_CATALOG"),
		TrustedProxies: parsePrefixes(os.Getenv("TRUSTED_PROXIES")),
		MaxBodyBytes:   int64(intOr("MAX_BODY_BYTES", 64*1024)),
		OTP: OTP{
			TTL:         durationOr("OTP_TTL", 24*time.Hour),
			MaxAttempts: intOr("OTP_MAX_ATTEMPTS", 5),
			Lockout:     durationOr("OTP_LOCKOUT", 15*time.Minute),
			BcryptCost:  intOr("OTP_BCRYPT_COST", 10),
		},
	}
}

// DevSigningKey reports whether the built-in development key is in use.
func (s Server) DevSigningKey() bool {
	return s.JWTSigningKey == devSigningKey
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

// parsePrefixes reads a comma-separated CIDR list, skipping malformed entries.
func parsePrefixes(raw string) []netip.Prefix {
	var out []netip.Prefix
	for _, part := range strings.Split(raw, ",") {
		p, err := netip.ParsePrefix(strings.TrimSpace(part))
		if err == nil {
			out = append(out, p)
		}
	}
	return out
}
