// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	adminstore "github.com/branchrate/branchrate/internal/app/store/admins"
	"github.com/branchrate/branchrate/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
//
// BranchRate uses it to guarantee an owner account exists: a fresh
// deployment is unusable otherwise, since only owners can create
// further admins.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.OwnerEmail == "" {
		return nil
	}
	return ensureOwner(ctx, deps, appCfg.OwnerEmail, appCfg.OwnerPassword, logger)
}

// ensureOwner creates the bootstrap owner account when no owner exists.
// An existing owner, any owner, means the deployment is already usable
// and the configured credentials are left untouched.
func ensureOwner(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	admins := adminstore.New(deps.MongoDatabase)

	n, err := admins.CountOwners(ctx)
	if err != nil {
		return fmt.Errorf("count owners: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash owner password: %w", err)
	}

	a, err := admins.Create(ctx, models.AdminAccount{
		Email:        email,
		Name:         "Owner",
		Role:         models.RoleOwner,
		PasswordHash: string(hash),
	})
	if err != nil {
		return fmt.Errorf("create bootstrap owner: %w", err)
	}

	logger.Info("bootstrap owner account created",
		zap.String("admin_id", a.ID.Hex()),
		zap.String("email", email))
	return nil
}
