//go:build integration

package containers

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	gorm_mysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

var validTableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MySQLContainer is a throwaway MySQL server for repository tests.
type MySQLContainer struct {
	container *mysql.MySQLContainer
	db        *gorm.DB
	dsn       string
}

// MySQLConfig holds configuration for MySQL container creation.
type MySQLConfig struct {
	// Database name (default: "hivewatch_test")
	Database string
	Username string
	Password string
	// Image tag (default: "8.0")
	ImageTag string
}

// DefaultMySQLConfig returns a MySQLConfig with sensible defaults.
func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		Database: "hivewatch_test",
		Username: "hivewatch",
		Password: "hivewatch",
		ImageTag: "8.0",
	}
}

// NewMySQLContainer starts MySQL and opens a gorm connection to it.
// If config is nil, uses DefaultMySQLConfig().
func NewMySQLContainer(ctx context.Context, config *MySQLConfig) (*MySQLContainer, error) {
	if config == nil {
		defaultCfg := DefaultMySQLConfig()
		config = &defaultCfg
	}

	container, err := mysql.Run(ctx, "mysql:"+config.ImageTag,
		mysql.WithDatabase(config.Database),
		mysql.WithUsername(config.Username),
		mysql.WithPassword(config.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start MySQL container: %w", err)
	}

	// gorm scans DATETIME into time.Time only with parseTime.
	dsn, err := container.ConnectionString(ctx, "parseTime=true", "loc=UTC")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	db, err := gorm.Open(gorm_mysql.Open(dsn), &gorm.Config{
		Logger:  gorm_logger.Default.LogMode(gorm_logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLContainer{container: container, db: db, dsn: dsn}, nil
}

// GetDB returns the shared gorm connection. Tests must not close it.
func (c *MySQLContainer) GetDB(t *testing.T) *gorm.DB {
	t.Helper()
	require.NotNil(t, c.db, "database connection is nil")
	return c.db
}

// DB returns the gorm connection for TestMain, where no *testing.T exists.
func (c *MySQLContainer) DB() *gorm.DB {
	return c.db
}

// GetDSN returns the go-sql-driver DSN of the container.
func (c *MySQLContainer) GetDSN() string {
	return c.dsn
}

// Reset empties tables with foreign key checks disabled.
func (c *MySQLContainer) Reset(ctx context.Context, tables []string) error {
	for _, table := range tables {
		if !validTableNameRe.MatchString(table) {
			return fmt.Errorf("invalid table name: %s", table)
		}
	}
	// TRUNCATE commits implicitly in MySQL, so one pinned connection
	// is used instead of a transaction.
	return c.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SET FOREIGN_KEY_CHECKS = 0").Error; err != nil {
			return fmt.Errorf("failed to disable foreign key checks: %w", err)
		}
		defer conn.Exec("SET FOREIGN_KEY_CHECKS = 1")
		for _, table := range tables {
			if err := conn.Exec(fmt.Sprintf("TRUNCATE TABLE `%s`", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// Terminate closes the connection and removes the container.
func (c *MySQLContainer) Terminate(ctx context.Context) error {
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		c.db = nil
	}
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate container: %w", err)
		}
	}
	return nil
}
