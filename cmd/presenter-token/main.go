package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/weiawesome/live-poll/internal/config"
	"github.com/weiawesome/live-poll/pkg/jwt"
	pkglog "github.com/weiawesome/live-poll/pkg/log"
)

// presenter-token prints a token that grants the presenter role when the
// server runs with auth.mode=token. Pass it as ?token= on the /ws URL.
func main() {
	name := flag.String("name", "Teacher", "presenter display name")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Auth.PresenterSecret == "" {
		fmt.Fprintln(os.Stderr, "auth.presenter_secret (PRESENTER_SECRET) is not set")
		os.Exit(1)
	}

	duration := cfg.Auth.TokenTTL
	if *ttl > 0 {
		duration = *ttl
	}

	manager, err := jwt.NewManager(cfg.Auth.PresenterSecret, duration, cfg.Auth.Issuer)
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to create token manager")
	}

	token, expiresAt, err := manager.IssuePresenterToken(*name)
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to issue token")
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}
