package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

const testEnvSecret = "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hl7keeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// serveFlags mirrors the flags the serve command registers.
func serveFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("host", "", "")
	flags.Int("port", 0, "")
	flags.String("db-url", "", "")
	if err := flags.Parse(args); err != nil {
		t.Fatalf("flags.Parse(%v) error = %v", args, err)
	}
	return flags
}

// TestLoadConfig_Precedence walks each layer of flags > env > file > defaults
// for the listen port and the database URL.
func TestLoadConfig_Precedence(t *testing.T) {
	const file = `rules_api:
  port: 9090
database:
  url: "sqlite3://file.db"
`
	tests := []struct {
		name     string
		file     bool
		env      map[string]string
		args     []string
		wantPort int
		wantDB   string
	}{
		{
			name:     "defaults",
			wantPort: 50051,
			wantDB:   "",
		},
		{
			name:     "file over defaults",
			file:     true,
			wantPort: 9090,
			wantDB:   "sqlite3://file.db",
		},
		{
			name:     "env over file",
			file:     true,
			env:      map[string]string{"HK_RULES_API_PORT": "8080", "HK_DATABASE_URL": "sqlite3://env.db"},
			wantPort: 8080,
			wantDB:   "sqlite3://env.db",
		},
		{
			name:     "set flags over env and file",
			file:     true,
			env:      map[string]string{"HK_RULES_API_PORT": "8080", "HK_DATABASE_URL": "sqlite3://env.db"},
			args:     []string{"--port", "7070", "--db-url", "sqlite3://flag.db"},
			wantPort: 7070,
			wantDB:   "sqlite3://flag.db",
		},
		{
			name:     "one flag set, the other falls through to env",
			file:     true,
			env:      map[string]string{"HK_RULES_API_PORT": "8080", "HK_DATABASE_URL": "sqlite3://env.db"},
			args:     []string{"--db-url", "sqlite3://flag.db"},
			wantPort: 8080,
			wantDB:   "sqlite3://flag.db",
		},
		{
			name:     "unset flags keep file values",
			file:     true,
			args:     []string{},
			wantPort: 9090,
			wantDB:   "sqlite3://file.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file {
				path = writeConfigFile(t, file)
			}
			var flags *pflag.FlagSet
			if tt.args != nil {
				flags = serveFlags(t, tt.args...)
			}

			cfg, err := LoadConfig(path, flags)
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", cfg.Port, tt.wantPort)
			}
			if cfg.DatabaseURL != tt.wantDB {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tt.wantDB)
			}
		})
	}
}

func TestLoadConfig_SecretsStayInEnvironment(t *testing.T) {
	for _, content := range []string{
		"hmac_secret: \"nope\"\n",
		"rules_api:\n  port: 8080\n  hmac_secret: \"nope\"\n",
	} {
		_, err := LoadConfig(writeConfigFile(t, content), nil)
		if err == nil {
			t.Fatalf("LoadConfig(%q) error = nil, want rejection", content)
		}
		if err.Error() != "HMAC secrets not allowed in config files (use HK_HMAC_SECRET environment variable)" {
			t.Errorf("LoadConfig(%q) error = %v", content, err)
		}
	}

	t.Run("env secret with config file", func(t *testing.T) {
		t.Setenv("HK_HMAC_SECRET", testEnvSecret)

		if _, err := LoadConfig(writeConfigFile(t, "rules_api:\n  port: 8080\n"), nil); err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets() error = %v", err)
		}
		if _, ok := secrets["0123456789abcdef0123456789abcdef"]; !ok {
			t.Errorf("HMACSecrets() = %v, want secret from HK_HMAC_SECRET", secrets)
		}
	})
}
