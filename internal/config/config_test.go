package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// fakeBackend is an in-memory ConfigBackend for tests.
type fakeBackend struct {
	strings map[string]string
	ints    map[string]int
	errKey  string
}

func (f *fakeBackend) GetString(key string) (string, bool, error) {
	if key == f.errKey {
		return "", false, fmt.Errorf("backend failure on %s", key)
	}
	v, ok := f.strings[key]
	return v, ok, nil
}

func (f *fakeBackend) GetInt(key string) (int, bool, error) {
	if key == f.errKey {
		return 0, false, fmt.Errorf("backend failure on %s", key)
	}
	v, ok := f.ints[key]
	return v, ok, nil
}

func (f *fakeBackend) SetString(key, val string) error {
	f.strings[key] = val
	return nil
}

func (f *fakeBackend) SetInt(key string, val int) error {
	f.ints[key] = val
	return nil
}

func (f *fakeBackend) Delete(key string) error {
	delete(f.strings, key)
	delete(f.ints, key)
	return nil
}

func emptyBackend() *fakeBackend {
	return &fakeBackend{strings: map[string]string{}, ints: map[string]int{}}
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := loadWith(emptyBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4600 {
		t.Errorf("port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Pipeline.Default != "standard" {
		t.Errorf("pipeline default = %q, want standard", cfg.Pipeline.Default)
	}
	if cfg.Worker.PollInterval != "500ms" {
		t.Errorf("poll interval = %q, want 500ms", cfg.Worker.PollInterval)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("data dir empty")
	}
}

func TestLoadBackendValues(t *testing.T) {
	clearEnvOverrides(t)

	b := emptyBackend()
	b.ints["server.port"] = 8080
	b.strings["log.level"] = "debug"
	b.strings["pipeline.dir"] = "/etc/tenderd/pipelines"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Pipeline.Dir != "/etc/tenderd/pipelines" {
		t.Errorf("pipeline dir = %q", cfg.Pipeline.Dir)
	}
}

func TestLoadBackendError(t *testing.T) {
	clearEnvOverrides(t)

	b := emptyBackend()
	b.errKey = "server.port"
	if _, err := loadWith(b); err == nil {
		t.Error("backend failure not surfaced")
	}
}

func TestEnvOverridesBeatBackend(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("TENDERD_SERVER_PORT", "9090")
	t.Setenv("TENDERD_LOG_LEVEL", "warn")

	b := emptyBackend()
	b.ints["server.port"] = 8080
	b.strings["log.level"] = "debug"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want env override warn", cfg.Log.Level)
	}
}

func TestEnvOverrideBadIntIgnored(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("TENDERD_SERVER_PORT", "not-a-port")

	b := emptyBackend()
	b.ints["server.port"] = 8080

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want backend value 8080", cfg.Server.Port)
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetKey("server.port", "8080"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if err := SetKey("log.level", "debug"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}

	if _, err := os.Stat(configFilePath()); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Log.Level != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestSetKeyValidation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := SetKey("server.port", "not-a-number"); err == nil {
		t.Error("non-integer port accepted")
	}
	if err := SetKey("no.such.key", "x"); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestShowAllCoversValidKeys(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := loadWith(emptyBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	infos := ShowAll(cfg)
	if len(infos) != len(ValidKeys()) {
		t.Fatalf("ShowAll = %d entries, want %d", len(infos), len(ValidKeys()))
	}
	byKey := make(map[string]KeyInfo, len(infos))
	for _, info := range infos {
		byKey[info.Key] = info
	}
	if got := byKey["server.port"]; got.Value != "4600" || got.EnvVar != "TENDERD_SERVER_PORT" {
		t.Errorf("server.port info = %+v", got)
	}
}

func TestGetAPIToken(t *testing.T) {
	t.Setenv("TENDERD_API_TOKEN", "")
	dir := filepath.Join(t.TempDir(), "data")

	token, err := GetAPIToken(dir)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token))
	}

	info, err := os.Stat(filepath.Join(dir, "api_token"))
	if err != nil {
		t.Fatalf("token file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}

	// Subsequent calls reuse the persisted token.
	again, err := GetAPIToken(dir)
	if err != nil {
		t.Fatalf("second GetAPIToken: %v", err)
	}
	if again != token {
		t.Errorf("token changed across calls: %q != %q", again, token)
	}
}

func TestGetAPITokenEnvOverride(t *testing.T) {
	t.Setenv("TENDERD_API_TOKEN", "from-env")

	token, err := GetAPIToken(t.TempDir())
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if token != "from-env" {
		t.Errorf("token = %q, want env value", token)
	}
}
