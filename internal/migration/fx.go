package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/smallbiznis/sellerflow/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		log = log.Named("migration")
		if cfg.DBRunMigrations {
			if err := applySchema(conn, cfg.DBType, log); err != nil {
				return err
			}
		}
		if !cfg.SeedDefaults {
			return nil
		}
		return seed.EnsureDefaults(conn, node, log)
	}),
)

func applySchema(conn *gorm.DB, dbType string, log *zap.Logger) error {
	if dbType != "postgres" {
		// the embedded schema is postgres only
		log.Warn("skipping migrations for unsupported database type", zap.String("db_type", dbType))
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	res, err := RunMigrations(sqlDB, log)
	if err != nil {
		return err
	}
	if res.Applied {
		log.Info("schema migrated", zap.Uint("from_version", res.From), zap.Uint("to_version", res.To))
	} else {
		log.Debug("schema up to date", zap.Uint("version", res.To))
	}
	return nil
}
