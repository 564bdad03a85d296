package database

import (
	"database/sql"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"crmapi/internal/config"
	"crmapi/internal/logger"
)

// DB is the shared database handle.
var DB *sql.DB

// InitDB opens the postgres connection pool and verifies connectivity.
func InitDB(cfg *config.DBConfig) error {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return err
	}

	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return err
	}

	DB = db
	logger.Get().Info("database connected", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return nil
}

// CloseDB closes the connection pool.
func CloseDB() {
	if DB != nil {
		_ = DB.Close()
	}
}
