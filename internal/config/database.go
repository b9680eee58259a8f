package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kingrain94/entitlement-api/pkg/logger"
)

// DatabaseConfig addresses one Postgres endpoint. The writer also serves the
// per-request tenant schema bindings, so its pool bounds concurrent tenant requests.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SearchPath      string
	ApplicationName string
}

type ConnectionPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultConnectionPoolConfig() *ConnectionPoolConfig {
	return &ConnectionPoolConfig{
		MaxOpenConns:    50,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// loadDatabaseConfig reads POSTGRES_<ROLE>_* variables, e.g. POSTGRES_WRITER_HOST.
func loadDatabaseConfig(role string) *DatabaseConfig {
	prefix := "POSTGRES_" + role + "_"
	return &DatabaseConfig{
		Host:            getEnvWithDefault(prefix+"HOST", "localhost"),
		Port:            getEnvWithDefault(prefix+"PORT", "5432"),
		User:            getEnvWithDefault(prefix+"USER", "postgres"),
		Password:        getEnvWithDefault(prefix+"PASSWORD", ""),
		DBName:          getEnvWithDefault(prefix+"DB_NAME", "entitlements"),
		SSLMode:         getEnvWithDefault(prefix+"SSL_MODE", "disable"),
		SearchPath:      getEnvWithDefault("DEFAULT_SCHEMA", "public"),
		ApplicationName: getEnvWithDefault("DB_APPLICATION_NAME", "entitlement-api"),
	}
}

func loadConnectionPoolConfig() *ConnectionPoolConfig {
	defaults := DefaultConnectionPoolConfig()
	return &ConnectionPoolConfig{
		MaxOpenConns:    getEnvIntWithDefault("DB_MAX_OPEN_CONNS", defaults.MaxOpenConns),
		MaxIdleConns:    getEnvIntWithDefault("DB_MAX_IDLE_CONNS", defaults.MaxIdleConns),
		ConnMaxLifetime: getEnvDurationWithDefault("DB_CONN_MAX_LIFETIME", defaults.ConnMaxLifetime),
		ConnMaxIdleTime: getEnvDurationWithDefault("DB_CONN_MAX_IDLE_TIME", defaults.ConnMaxIdleTime),
	}
}

// DSN renders a postgres URL. Pooled connections start on the shared schema;
// tenant schemas are only ever set on connections checked out for one request.
func (c *DatabaseConfig) DSN() string {
	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	if c.SearchPath != "" {
		query.Set("search_path", c.SearchPath)
	}
	if c.ApplicationName != "" {
		query.Set("application_name", c.ApplicationName)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func configureConnectionPool(gormDB *gorm.DB, poolConfig *ConnectionPoolConfig) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(poolConfig.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(poolConfig.ConnMaxIdleTime)

	return nil
}

// newGormLogger routes SQL logging through the application logger and keeps
// statement logging out of production output.
func newGormLogger(appEnv string, log *logger.Logger) gormlogger.Interface {
	level := gormlogger.Info
	if appEnv == "production" {
		level = gormlogger.Warn
	}
	return gormlogger.New(log, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func createDatabaseConnection(dbConfig *DatabaseConfig, poolConfig *ConnectionPoolConfig, gormLogger gormlogger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dbConfig.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s:%s: %w", dbConfig.Host, dbConfig.Port, err)
	}

	if err := configureConnectionPool(db, poolConfig); err != nil {
		return nil, fmt.Errorf("failed to configure connection pool: %w", err)
	}

	return db, nil
}

// DatabaseConnections holds both writer and reader database connections
type DatabaseConnections struct {
	Writer *gorm.DB
	Reader *gorm.DB
}

// NewDatabaseConnections opens the writer and reader pools. The reader falls
// back to the writer endpoint when POSTGRES_READER_HOST is unset.
func NewDatabaseConnections(cfg *Config, log *logger.Logger) (*DatabaseConnections, error) {
	gormLogger := newGormLogger(cfg.AppEnv, log)
	poolConfig := loadConnectionPoolConfig()

	writerConfig := loadDatabaseConfig("WRITER")
	writerConfig.SearchPath = cfg.DefaultSchema
	writer, err := createDatabaseConnection(writerConfig, poolConfig, gormLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create writer database connection: %w", err)
	}

	readerConfig := loadDatabaseConfig("READER")
	readerConfig.SearchPath = cfg.DefaultSchema
	if getEnvWithDefault("POSTGRES_READER_HOST", "") == "" {
		readerConfig = writerConfig
	}
	reader, err := createDatabaseConnection(readerConfig, poolConfig, gormLogger)
	if err != nil {
		closeDB(writer)
		return nil, fmt.Errorf("failed to create reader database connection: %w", err)
	}

	return &DatabaseConnections{
		Writer: writer,
		Reader: reader,
	}, nil
}

// Ping checks both pools, used by the health endpoint.
func (dc *DatabaseConnections) Ping(ctx context.Context) error {
	for name, db := range map[string]*gorm.DB{"writer": dc.Writer, "reader": dc.Reader} {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Close closes both writer and reader database connections
func (dc *DatabaseConnections) Close() error {
	writerErr := closeDB(dc.Writer)
	readerErr := closeDB(dc.Reader)

	if writerErr != nil {
		return fmt.Errorf("failed to close writer database connection: %w", writerErr)
	}
	if readerErr != nil {
		return fmt.Errorf("failed to close reader database connection: %w", readerErr)
	}
	return nil
}

func closeDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
