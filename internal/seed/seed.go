// Package seed creates the default accounts and partners on startup.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"green-rewards/internal/models"
	"green-rewards/internal/services"
	"green-rewards/internal/store"
)

// Account is a seeded login.
type Account struct {
	Username string          `yaml:"username"`
	Email    string          `yaml:"email"`
	Phone    string          `yaml:"phone"`
	Password string          `yaml:"password"`
	Role     models.UserRole `yaml:"role"`
}

// File is the parsed seed file.
type File struct {
	Accounts []Account        `yaml:"accounts"`
	Partners []models.Partner `yaml:"partners"`
}

// Defaults returns the built-in admin and manager accounts.
func Defaults() *File {
	return &File{
		Accounts: []Account{
			{Username: "admin", Email: "admin@system.com", Phone: "0000000000", Password: "admin1", Role: models.RoleAdmin},
			{Username: "manager", Email: "manager@system.com", Phone: "1111111111", Password: "manager1", Role: models.RoleManager},
		},
	}
}

// Load reads a seed file. Accounts listed in the file replace the defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	if len(f.Accounts) == 0 {
		f.Accounts = Defaults().Accounts
	}
	for i, a := range f.Accounts {
		if a.Username == "" || a.Password == "" {
			return nil, fmt.Errorf("account %d: username and password are required", i)
		}
		if a.Role == "" {
			f.Accounts[i].Role = models.RoleUser
		} else if !a.Role.Valid() {
			return nil, fmt.Errorf("account %q: invalid role %q", a.Username, a.Role)
		}
	}
	for i, p := range f.Partners {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("partner %d: name is required", i)
		}
		if p.Status == "" {
			f.Partners[i].Status = models.PartnerStatusActive
		}
	}
	return &f, nil
}

// Run inserts every seeded account and partner that does not exist yet.
// Existing records are left untouched, so repeated or concurrent starts are
// safe.
func Run(ctx context.Context, st store.Store, f *File, logger zerolog.Logger) error {
	now := time.Now().UTC()

	for _, a := range f.Accounts {
		hash, err := services.HashPassword(a.Password)
		if err != nil {
			return err
		}
		created, err := st.EnsureAccount(ctx, &models.Account{
			ID:           uuid.NewString(),
			Username:     a.Username,
			Email:        strings.ToLower(a.Email),
			Phone:        a.Phone,
			PasswordHash: hash,
			Role:         a.Role,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("seeding account %s: %w", a.Username, err)
		}
		if created {
			logger.Info().Str("username", a.Username).Str("role", string(a.Role)).Msg("Default account created")
		}
	}

	for _, p := range f.Partners {
		p.ID = uuid.NewString()
		p.CreatedAt = now
		p.UpdatedAt = now
		created, err := st.EnsurePartner(ctx, &p)
		if err != nil {
			return fmt.Errorf("seeding partner %s: %w", p.Name, err)
		}
		if created {
			logger.Info().Str("partner", p.Name).Msg("Partner created")
		}
	}
	return nil
}
