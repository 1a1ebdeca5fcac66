package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/david/campaign-radar/internal/auth"
	"github.com/david/campaign-radar/internal/config"
)

// token prints a bearer token for the JWT-protected routes, signed with JWT_SECRET.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(os.Args[1:], cfg.JWTSecret, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, secret string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "user id to put in the token subject")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// A random fallback secret would mint tokens no server accepts.
	if strings.TrimSpace(secret) == "" {
		return errors.New("JWT_SECRET must be set to issue tokens")
	}
	token, err := auth.IssueToken([]byte(strings.TrimSpace(secret)), *user, *ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(out, token)
	fmt.Fprintf(out, "# expires %s\n", time.Now().Add(*ttl).Format(time.RFC3339))
	return nil
}
