// Package db opens the gorm connection named by DB_DSN.
package db

import (
	"fmt"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialect picks a driver from the DSN shape: postgres URLs or key=value
// strings, mysql "user:pass@tcp(...)" strings, and sqlite for everything else.
func Dialect(dsn string) string {
	d := strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"), strings.Contains(d, "host=") && strings.Contains(d, "dbname="):
		return "postgres"
	case strings.Contains(d, "@tcp(") || strings.Contains(d, "@unix("):
		return "mysql"
	default:
		return "sqlite"
	}
}

func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch Dialect(dsn) {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		dialector = gormsqlite.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", Dialect(dsn), err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return gdb, nil
}

// Connect is Open for process entry points: it panics when the database is
// unreachable.
func Connect(dsn string) *gorm.DB {
	gdb, err := Open(dsn)
	if err != nil {
		panic(err)
	}
	return gdb
}
