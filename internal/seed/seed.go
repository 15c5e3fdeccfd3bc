// Package seed bootstraps users, chats and API keys from a YAML file.
package seed

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/service"
	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

// File is the seed document.
type File struct {
	Users   []User   `yaml:"users"`
	Chats   []Chat   `yaml:"chats"`
	APIKeys []APIKey `yaml:"api_keys"`
}

// User entry.
type User struct {
	UserID    int64  `yaml:"user_id"`
	Name      string `yaml:"name"`
	Admin     bool   `yaml:"admin"`
	Whitelist bool   `yaml:"whitelist"`
}

// Chat entry.
type Chat struct {
	ChatID      int64    `yaml:"chat_id"`
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Category    []string `yaml:"category"`
	Language    []string `yaml:"language"`
	Label       []string `yaml:"label"`
	Description string   `yaml:"description"`
}

// APIKey entry. Secrets are hashed before storage.
type APIKey struct {
	Key    string `yaml:"api_key"`
	Secret string `yaml:"api_secret"`
	Name   string `yaml:"name"`
	Role   string `yaml:"role"`
}

// Parse decodes a seed document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &f, nil
}

// Load reads and decodes a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(data)
}

// Services are the write paths a seed goes through.
type Services struct {
	Users *service.UserService
	Chats *service.ChatService
	Auth  *service.AuthService
}

// Result counts created and skipped entries.
type Result struct {
	Created int
	Skipped int
}

// Apply inserts every entry that does not exist yet. Existing entries are
// skipped, so a seed can be applied on every start.
func Apply(ctx context.Context, f *File, svc Services, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res Result
	record := func(kind string, id any, err error) error {
		switch {
		case err == nil:
			res.Created++
			logger.Info("seeded", zap.String("kind", kind), zap.Any("id", id))
			return nil
		case apperrors.Is(err, apperrors.CodeConflict):
			res.Skipped++
			return nil
		default:
			return fmt.Errorf("seed %s %v: %w", kind, id, err)
		}
	}

	for _, u := range f.Users {
		_, err := svc.Users.Create(ctx, service.UserCreateInput{UserID: u.UserID, Name: u.Name, Admin: u.Admin, Whitelist: u.Whitelist})
		if err := record("user", u.UserID, err); err != nil {
			return res, err
		}
	}
	for _, c := range f.Chats {
		_, err := svc.Chats.Create(ctx, service.ChatCreateInput{
			ChatID:      c.ChatID,
			Name:        c.Name,
			Type:        domain.ChatType(c.Type),
			Category:    c.Category,
			Language:    c.Language,
			Label:       c.Label,
			Description: c.Description,
		})
		if err := record("chat", c.ChatID, err); err != nil {
			return res, err
		}
	}
	for _, k := range f.APIKeys {
		_, err := svc.Auth.ImportAPIKey(ctx, k.Key, k.Secret, k.Name, domain.APIKeyRole(k.Role))
		if err := record("api_key", k.Key, err); err != nil {
			return res, err
		}
	}
	return res, nil
}
