// Command kiosktoken mints a bearer token for an unattended kiosk device.
//
//	kiosktoken -subject kiosk-front-door -ttl 8760h
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gymcheckin/config"
	"gymcheckin/internal/adapters/auth"
)

func main() {
	subject := flag.String("subject", "", "device id carried as the token subject")
	roles := flag.String("roles", "kiosk", "comma separated roles")
	ttl := flag.Duration("ttl", 365*24*time.Hour, "token lifetime")
	flag.Parse()

	logger := config.NewLogger()
	if *subject == "" {
		fmt.Fprintln(os.Stderr, "kiosktoken: -subject is required")
		flag.Usage()
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET must be set to mint kiosk tokens")
		os.Exit(1)
	}

	token, err := auth.NewJWTIssuer(cfg.JWTSecret).Issue(*subject, splitRoles(*roles), *ttl)
	if err != nil {
		logger.Error("issue token", "err", err)
		os.Exit(1)
	}
	logger.Info("kiosk token issued", "subject", *subject, "expires_at", time.Now().Add(*ttl).UTC().Format(time.RFC3339))
	fmt.Println(token)
}

func splitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
