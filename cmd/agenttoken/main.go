// Command agenttoken mints an agency bearer token signed with the configured
// secret.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"signflow/auth"
	"signflow/config"
)

func main() {
	configPath := flag.String("config", os.Getenv("SIGNFLOW_CONFIG"), "path to config.yaml")
	id := flag.String("id", "", "agent id (required)")
	email := flag.String("email", "", "agent email")
	name := flag.String("name", "", "agent display name")
	role := flag.String("role", string(auth.RoleAgent), "agent or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*configPath, auth.Agent{ID: *id, Email: *email, Name: *name, Role: auth.Role(*role)}, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "agenttoken: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, agent auth.Agent, ttl time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(cfg.JWTSecret, auth.WithIssuer(cfg.JWTIssuer), auth.WithTTL(ttl))
	if err != nil {
		return err
	}
	token, err := svc.Issue(agent)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
