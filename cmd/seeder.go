package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/frahmantamala/trading-iam/internal"
	authPostgres "github.com/frahmantamala/trading-iam/internal/auth/postgres"
	"github.com/frahmantamala/trading-iam/internal/role"
	rolePostgres "github.com/frahmantamala/trading-iam/internal/role/postgres"
	"github.com/frahmantamala/trading-iam/internal/scope"
	"github.com/frahmantamala/trading-iam/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the system roles and an admin user",
	Long:  `Seed the database with the ADMIN and TRADER system roles and a bootstrap administrator account.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		logger.Init(os.Getenv("APP_ENV"), cfg.Observability.Logging.Level)
		lg := logger.L()

		ctx := context.Background()
		roleRepo := rolePostgres.NewRepository(gormDB)
		resolver := role.NewResolver(roleRepo, nil, lg)

		systemRoles := []*role.Role{
			{
				Code:        role.CodeAdmin,
				Name:        "Administrator",
				Description: "Full access to IAM administration",
				IsSystem:    true,
				Templates: []role.ScopeTemplate{
					{Type: scope.TypeAllow, Path: "api:iam:roles:manage"},
					{Type: scope.TypeAllow, Path: "api:iam:users:read"},
					{Type: scope.TypeAllow, Path: "api:iam:grants:manage"},
					{Type: scope.TypeAllow, Path: "api:iam:audit:read"},
				},
			},
			{
				Code:        role.CodeTrader,
				Name:        "Trader",
				Description: "Default role for registered users",
				IsSystem:    true,
				Templates: []role.ScopeTemplate{
					{Type: scope.TypeAllow, Path: "api:iam:users:read", Params: map[string]string{"userId": "{roleUserId}"}},
					{Type: scope.TypeAllow, Path: "api:trading:orders:read", Params: map[string]string{"traderId": "{roleUserId}"}},
					{Type: scope.TypeAllow, Path: "api:trading:orders:create", Params: map[string]string{"traderId": "{roleUserId}"}},
				},
			},
		}

		for _, r := range systemRoles {
			if err := roleRepo.Create(ctx, r); err != nil {
				if errors.Is(err, internal.ErrDuplicateRoleCode) {
					fmt.Printf("role %s already exists, skipping\n", r.Code)
					continue
				}
				log.Fatalf("failed to seed role %s: %v", r.Code, err)
			}
			fmt.Printf("Seeded system role: %s\n", r.Code)
		}

		adminEmail := "admin@trading.local"
		hash, _ := bcrypt.GenerateFromPassword([]byte("change-me-on-first-login"), cfg.Security.BCryptCost)

		authRepo := authPostgres.NewRepository(gormDB)
		adminID, err := authRepo.CreateUser(ctx, adminEmail, "Administrator", string(hash))
		if err != nil {
			if !errors.Is(err, internal.ErrDuplicateEmail) {
				log.Fatalf("failed to seed admin user: %v", err)
			}
			cred, err := authRepo.GetCredentialByEmail(ctx, adminEmail)
			if err != nil {
				log.Fatalf("failed to look up admin user: %v", err)
			}
			adminID = cred.UserID
			fmt.Println("admin user already exists; will ensure role assignment")
		} else {
			fmt.Println("Seeded admin user:", adminEmail)
		}

		// Idempotent, safe to re-run
		if err := resolver.AssignRole(ctx, adminID, role.CodeAdmin, nil); err != nil {
			log.Fatalf("failed to assign ADMIN role: %v", err)
		}
		fmt.Println("Assigned ADMIN role to:", adminEmail)
	},
}
