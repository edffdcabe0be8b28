package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"library/internal/auth"
)

func getEnvOrDefault(key, default_ string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}

	return default_
}

func main() {
	defaultTTL, err := time.ParseDuration(getEnvOrDefault("TOKEN_TTL", "24h"))
	if err != nil {
		slog.Error("Invalid TOKEN_TTL: " + err.Error())
		os.Exit(1)
	}

	sub := flag.String("sub", "", "subject the token identifies")
	ttl := flag.Duration("ttl", defaultTTL, "token lifetime (TOKEN_TTL)")
	flag.Parse()

	tokens, err := auth.NewTokens(os.Getenv("JWT_SECRET"))
	if err != nil {
		slog.Error("You need to specify JWT_SECRET env var")
		os.Exit(1)
	}

	if *ttl <= 0 {
		slog.Error("Token lifetime must be positive")
		os.Exit(1)
	}

	token, err := tokens.Issue(*sub, *ttl)
	if err != nil {
		slog.Error("Failed to issue token: " + err.Error())
		os.Exit(1)
	}

	fmt.Println(token)
}
