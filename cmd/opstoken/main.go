// Command opstoken issues a token pair for the ops endpoints. There is no
// login flow; operators get tokens out of band.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"telehealth-platform/internal/auth"
	"telehealth-platform/internal/config"
	"telehealth-platform/internal/rbac"
)

func main() {
	user := flag.String("user", "", "user id placed in the token subject")
	role := flag.String("role", rbac.RoleOperator, "viewer, operator or admin")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "opstoken: -user is required")
		os.Exit(2)
	}
	if !rbac.IsKnownRole(*role) {
		fmt.Fprintf(os.Stderr, "opstoken: unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "opstoken: config:", err)
		os.Exit(1)
	}
	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opstoken: auth:", err)
		os.Exit(1)
	}
	pair, err := m.IssuePair(time.Now(), *user, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opstoken: issue:", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"role":          *role,
	})
}
