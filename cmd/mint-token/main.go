// Command mint-token issues a signed learner or admin token for local testing.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vyakaran/platform/internal/auth"
	"github.com/vyakaran/platform/internal/infra"
)

func main() {
	realm := flag.String("realm", string(auth.RealmLearner), "token realm: learner or admin")
	subject := flag.String("sub", "", "subject uuid (random when empty)")
	name := flag.String("name", "", "display name")
	role := flag.String("role", "", "admin role (admin realm only)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(*realm, *subject, *name, *role, *ttl); err != nil {
		logger.Error("mint token failed", "error", err)
		os.Exit(1)
	}
}

func run(realm, subject, name, role string, ttl time.Duration) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	id := uuid.New()
	if subject != "" {
		if id, err = uuid.Parse(subject); err != nil {
			return fmt.Errorf("parse subject: %w", err)
		}
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, ttl, ttl).GenerateToken(auth.Realm(realm), id, name, role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
