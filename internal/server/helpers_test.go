package server

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"blogapi/internal/config"
	"blogapi/internal/logging"
)

type record map[string]any

func (r record) str(key string) string {
	s, _ := r[key].(string)
	return s
}

func (r record) status() int {
	f, _ := r["status_code"].(float64)
	return int(f)
}

// captureLogs returns a logging service writing every record to a temp file,
// and a function reading back what has been written so far.
func captureLogs(t *testing.T) (*logging.Service, func() []record) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.log")
	logs, err := logging.New(logging.Config{
		Level: zerolog.InfoLevel,
		Destinations: []logging.Destination{
			{Kind: logging.KindFile, Level: zerolog.InfoLevel, Path: path},
		},
		Now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	t.Cleanup(func() { _ = logs.Close() })

	return logs, func() []record {
		t.Helper()
		f, err := os.Open(path)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			t.Fatalf("open log: %v", err)
		}
		defer f.Close()

		var out []record
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			var rec record
			if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
				t.Fatalf("log line is not JSON: %q", sc.Text())
			}
			out = append(out, rec)
		}
		return out
	}
}

func byMessage(recs []record, msg string) []record {
	var out []record
	for _, r := range recs {
		if r.str("message") == msg {
			out = append(out, r)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Port:        "0",
		Env:         "test",
		CORSOrigins: []string{"*"},
	}
}
