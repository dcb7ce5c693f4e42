package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/area-fans/internal/aggregate"
	"github.com/nerrad567/area-fans/internal/command"
	"github.com/nerrad567/area-fans/internal/configflow"
	"github.com/nerrad567/area-fans/internal/infrastructure/config"
	"github.com/nerrad567/area-fans/internal/infrastructure/database"
	"github.com/nerrad567/area-fans/internal/infrastructure/logging"
	"github.com/nerrad567/area-fans/internal/registry"
	"github.com/nerrad567/area-fans/internal/state"
	"github.com/nerrad567/area-fans/migrations"
)

// devConfig runs without MQTT or InfluxDB so no external services are needed.
const devConfig = `
database:
  path: %q
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

api:
  host: "127.0.0.1"
  port: %d

logging:
  level: error
  format: text
  output: stderr

fans:
  dev_mode: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails validation with no database path.
func TestRun_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ""
mqtt:
  enabled: false
fans:
  dev_mode: true
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, path); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_DevModeStartupAndShutdown starts the service without a broker and
// stops it through context cancellation.
func TestRun_DevModeStartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "areafans.db")
	path := writeConfig(t, fmt.Sprintf(devConfig, dbPath, 18099))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx, path); err != nil {
		t.Fatalf("run() = %v, want clean shutdown", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// TestSetupAggregates covers startup with and without a stored entry.
func TestSetupAggregates(t *testing.T) {
	ctx := context.Background()

	db, err := database.Open(config.DatabaseConfig{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx, migrations.FS, migrations.Dir); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	reg := registry.NewRegistry(registry.NewSQLiteRepository(db.DB))
	if err := reg.CreateArea(ctx, &registry.Area{ID: "office", Name: "Office"}); err != nil {
		t.Fatalf("CreateArea: %v", err)
	}
	if err := reg.RegisterEntity(ctx, &registry.Entity{ID: "fan.desk", Platform: "esphome", AreaID: registry.StrPtr("office")}); err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}

	store := state.NewStore()
	mgr := aggregate.NewManager(aggregate.Deps{
		Directory:  reg,
		States:     store,
		Dispatcher: command.NewLocalDispatcher(store),
	})
	defer mgr.Close()

	repo := configflow.NewSQLiteRepository(db.DB)
	flow := configflow.NewFlow(reg, repo, configflow.Options{})
	log := logging.Nop()

	if err := setupAggregates(ctx, flow, mgr, log); err != nil {
		t.Fatalf("setupAggregates without entry: %v", err)
	}
	if n := len(mgr.List()); n != 0 {
		t.Fatalf("aggregates before setup = %d, want 0", n)
	}

	if err := repo.CreateEntry(ctx, &configflow.Entry{
		ID:     "entry-1",
		Domain: configflow.Domain,
		Title:  configflow.Title,
		Data:   configflow.Data{ExcludedEntities: []string{}},
	}); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	if err := setupAggregates(ctx, flow, mgr, log); err != nil {
		t.Fatalf("setupAggregates: %v", err)
	}
	// Office sensor and switch plus the All pair.
	if n := len(mgr.List()); n != 4 {
		t.Errorf("aggregates = %d, want 4", n)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("AREAFANS_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("AREAFANS_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
