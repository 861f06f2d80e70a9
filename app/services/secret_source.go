// Package services provides external service integrations and technical concerns like secrets, delivery, and queueing
package services

import (
	"context"
	"fmt"
	"os"

	"github.com/tmcarr/heimdall/config"
)

// SecretSource fetches the single JSON blob holding the directory
// configuration (departments, talkgroups, sending identities)
type SecretSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// EnvSecretSource reads the blob from an environment variable
type EnvSecretSource struct {
	Key string
}

func (s *EnvSecretSource) Fetch(_ context.Context) ([]byte, error) {
	v := os.Getenv(s.Key)
	if v == "" {
		return nil, fmt.Errorf("secret env %s is empty", s.Key)
	}
	return []byte(v), nil
}

// FileSecretSource reads the blob from a mounted secret file
type FileSecretSource struct {
	Path string
}

func (s *FileSecretSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file %s: %w", s.Path, err)
	}
	return data, nil
}

// NewSecretSource builds the configured secret source
func NewSecretSource(cfg config.SecretsConfig) (SecretSource, error) {
	switch cfg.Source {
	case "env":
		return &EnvSecretSource{Key: cfg.Env}, nil
	case "file":
		return &FileSecretSource{Path: cfg.Path}, nil
	default:
		return nil, fmt.Errorf("unknown secrets source %q", cfg.Source)
	}
}
