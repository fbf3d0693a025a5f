package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	clientfeaturesdomain "github.com/smallbiznis/flagship/internal/clientfeatures/domain"
	releaseplandomain "github.com/smallbiznis/flagship/internal/releaseplan/domain"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// RunMigrations applies the embedded postgres migrations so the service is
// usable out of the box without an external migration step.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema through gorm for dialects the embedded SQL
// does not target (sqlite and mysql deployments, in-memory test databases).
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&clientfeaturesdomain.FeatureRecord{},
		&clientfeaturesdomain.FeatureEnvironmentRecord{},
		&clientfeaturesdomain.SegmentRecord{},
		&clientfeaturesdomain.LiveStrategyRecord{},
		&clientfeaturesdomain.LiveStrategySegmentRecord{},
		&clientfeaturesdomain.FeatureTagRecord{},
		&clientfeaturesdomain.FeatureDependencyRecord{},
		&clientfeaturesdomain.FeatureFavoriteRecord{},
		&releaseplandomain.ReleasePlanRecord{},
		&releaseplandomain.MilestoneRecord{},
		&releaseplandomain.MilestoneStrategyRecord{},
		&releaseplandomain.MilestoneStrategySegmentRecord{},
	)
}
