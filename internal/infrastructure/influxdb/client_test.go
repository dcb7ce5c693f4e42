package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/area-fans/internal/infrastructure/config"
	"github.com/nerrad567/area-fans/internal/infrastructure/influxdb"
)

// fakeServer answers /ping and records line protocol sent to /api/v2/write.
type fakeServer struct {
	*httptest.Server
	mu    sync.Mutex
	lines []string
	query []string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
		fs.mu.Lock()
		fs.query = append(fs.query, r.URL.RawQuery)
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				fs.lines = append(fs.lines, line)
			}
		}
		fs.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) waitLines(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		fs.mu.Lock()
		got := append([]string(nil), fs.lines...)
		fs.mu.Unlock()
		if len(got) >= n {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines", n)
	return nil
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "areafans-test-token",
		Org:           "home",
		Bucket:        "fans",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg, "")
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := influxdb.Connect(testConfig("http://127.0.0.1:59999"), "")
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	srv := newFakeServer(t)

	client, err := influxdb.Connect(testConfig(srv.URL), "home")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestClient_WriteAggregate(t *testing.T) {
	srv := newFakeServer(t)

	client, err := influxdb.Connect(testConfig(srv.URL), "home")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client.WriteAggregate(influxdb.AggregatePoint{
		EntityID: "switch.fans_kitchen",
		Area:     "Kitchen",
		Kind:     "switch",
		Count:    1,
		Total:    2,
		On:       true,
	}, at)
	client.WriteMemberState("fan.k1", "on", at)
	client.Flush()

	lines := srv.waitLines(t, 2)

	joined := strings.Join(lines, "\n")
	for _, want := range []string{
		"fan_aggregates,area=Kitchen,entity_id=switch.fans_kitchen,kind=switch",
		"count=1i",
		"total=2i",
		"fan_members,entity_id=fan.k1",
		`state="on"`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("line protocol missing %q:\n%s", want, joined)
		}
	}

	for _, line := range lines {
		if !strings.Contains(line, ",site=home") {
			t.Errorf("point missing site tag: %s", line)
		}
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.query) == 0 || !strings.Contains(srv.query[0], "bucket=fans") {
		t.Errorf("write query = %v, want bucket=fans", srv.query)
	}
}

func TestClient_WriteAfterCloseIsNoop(t *testing.T) {
	srv := newFakeServer(t)

	client, err := influxdb.Connect(testConfig(srv.URL), "home")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close() //nolint:errcheck // test

	client.WriteAggregate(influxdb.AggregatePoint{EntityID: "sensor.all_area_fans"}, time.Now())
	client.Flush()

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}
