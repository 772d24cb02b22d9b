// Package mysqltest provisions throwaway MySQL databases for integration tests.
package mysqltest

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/jipp1987/PruebaRestService/internal/sqlutil"
)

// DSNEnv names the environment variable holding the server DSN.
const DSNEnv = "PRUEBA_TEST_DSN"

// TestDB is an isolated database created for one test and dropped on cleanup.
type TestDB struct {
	DB           *sql.DB
	DatabaseName string
	config       *mysql.Config
}

// NewTestDB creates a uniquely named database on the server named by
// PRUEBA_TEST_DSN and connects to it. The test is skipped when the variable
// is not set.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	cfg := testConfig(t)
	dbName := fmt.Sprintf("test_%s_%d", sanitizeName(t.Name()), time.Now().UnixMilli())
	if !isValidDatabaseName(dbName) {
		t.Fatalf("Invalid database name generated: %s", dbName)
	}

	admin := open(t, cfg, "")
	// dbName is validated above.
	if _, err := admin.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", sqlutil.QuoteIdentifier(dbName))); err != nil {
		_ = admin.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}
	if err := admin.Close(); err != nil {
		t.Logf("Warning: failed to close database connection: %v", err)
	}

	testDB := &TestDB{
		DB:           open(t, cfg, dbName),
		DatabaseName: dbName,
		config:       cfg,
	}
	t.Cleanup(func() {
		testDB.Teardown(t)
	})
	return testDB
}

// DSN returns the DSN of the test database.
func (tdb *TestDB) DSN() string {
	cfg := tdb.config.Clone()
	cfg.DBName = tdb.DatabaseName
	return cfg.FormatDSN()
}

// Exec runs semicolon separated statements against the test database.
func (tdb *TestDB) Exec(t *testing.T, script string) {
	t.Helper()
	for i, stmt := range splitSQL(script) {
		if _, err := tdb.DB.Exec(stmt); err != nil {
			t.Fatalf("Failed to execute SQL statement %d: %v\nStatement: %s", i+1, err, stmt)
		}
	}
}

// LoadSQLFile runs the statements in a SQL file against the test database.
func (tdb *TestDB) LoadSQLFile(t *testing.T, path string) {
	t.Helper()
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read SQL file %s: %v", path, err)
	}
	tdb.Exec(t, string(payload))
}

// Teardown drops the test database and closes the connection.
func (tdb *TestDB) Teardown(t *testing.T) {
	t.Helper()
	if tdb.DB == nil {
		return
	}
	if _, err := tdb.DB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", sqlutil.QuoteIdentifier(tdb.DatabaseName))); err != nil {
		t.Logf("Warning: failed to drop test database %s: %v", tdb.DatabaseName, err)
	}
	if err := tdb.DB.Close(); err != nil {
		t.Logf("Warning: failed to close database connection: %v", err)
	}
	tdb.DB = nil
}

func testConfig(t *testing.T) *mysql.Config {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping integration test", DSNEnv)
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("Invalid %s: %v", DSNEnv, err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg
}

func open(t *testing.T, base *mysql.Config, database string) *sql.DB {
	t.Helper()
	cfg := base.Clone()
	cfg.DBName = database

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		t.Fatalf("Failed to build connector: %v", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to ping MySQL: %v", err)
	}
	return db
}

// sanitizeName makes a test name safe for use as a database name, leaving
// room for the timestamp suffix.
func sanitizeName(name string) string {
	var result strings.Builder
	for _, ch := range name {
		if isValidDatabaseChar(ch) {
			result.WriteRune(ch)
		} else {
			result.WriteRune('_')
		}
	}
	sanitized := result.String()
	if len(sanitized) > 40 {
		sanitized = sanitized[:40]
	}
	return sanitized
}

// splitSQL splits on semicolons. Semicolons inside strings or comments are not supported.
func splitSQL(script string) []string {
	parts := strings.Split(script, ";")
	out := make([]string, 0, len(parts))
	for _, stmt := range parts {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func isValidDatabaseName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, ch := range name {
		if !isValidDatabaseChar(ch) {
			return false
		}
	}
	return true
}

func isValidDatabaseChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '_'
}
