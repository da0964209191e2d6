package db

import "testing"

func TestDialect(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/companion":            "postgres",
		"host=localhost user=u dbname=companion sslmode=off": "postgres",
		"u:p@tcp(127.0.0.1:3306)/companion?parseTime=true":   "mysql",
		"file:companion.db?_pragma=busy_timeout(5000)":       "sqlite",
		"file::memory:?cache=shared":                         "sqlite",
	}
	for dsn, want := range cases {
		if got := Dialect(dsn); got != want {
			t.Errorf("Dialect(%q) = %s, want %s", dsn, got, want)
		}
	}
}

func TestOpen_SQLite(t *testing.T) {
	gdb, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := gdb.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("query: %v", err)
	}
}
