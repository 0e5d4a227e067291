package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/sitetime/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the sitetime configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	out := cmd.OutOrStdout()

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := findUnknownKeys(path)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(out, "✅ Configuration is valid: %s\n", path)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(out)
		red.Fprintf(out, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(out, "   - %s\n", key)
		}
		fmt.Fprintln(out, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(out, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))

		dumpConfig(out, cfg, config.Default(), unknownKeys)
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := getValidKeys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys. Every key has
// a default, so the defaults enumerate them.
func getValidKeys() map[string]bool {
	v := viper.New()
	config.SetDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	return keys
}

// setting is one line of the --dump output.
type setting struct {
	key    string
	value  interface{}
	def    interface{}
	secret bool
}

// sections returns the effective settings next to their defaults, grouped
// the way the config file is.
func sections(cfg, def *config.Config) []struct {
	name     string
	settings []setting
} {
	return []struct {
		name     string
		settings []setting
	}{
		{"server", []setting{
			{key: "bind_address", value: cfg.Server.BindAddress, def: def.Server.BindAddress},
			{key: "api_port", value: cfg.Server.APIPort, def: def.Server.APIPort},
			{key: "metrics_port", value: cfg.Server.MetricsPort, def: def.Server.MetricsPort},
			{key: "allowed_origins", value: cfg.Server.AllowedOrigins, def: def.Server.AllowedOrigins},
		}},
		{"storage", []setting{
			{key: "type", value: cfg.Storage.Type, def: def.Storage.Type},
			{key: "path", value: cfg.Storage.Path, def: def.Storage.Path},
			{key: "key", value: cfg.Storage.Key, def: def.Storage.Key},
		}},
		{"storage.redis", []setting{
			{key: "host", value: cfg.Storage.Redis.Host, def: def.Storage.Redis.Host},
			{key: "port", value: cfg.Storage.Redis.Port, def: def.Storage.Redis.Port},
			{key: "password", value: cfg.Storage.Redis.Password, def: def.Storage.Redis.Password, secret: true},
			{key: "db", value: cfg.Storage.Redis.DB, def: def.Storage.Redis.DB},
			{key: "pool_size", value: cfg.Storage.Redis.PoolSize, def: def.Storage.Redis.PoolSize},
			{key: "min_idle_conns", value: cfg.Storage.Redis.MinIdleConns, def: def.Storage.Redis.MinIdleConns},
			{key: "dial_timeout", value: cfg.Storage.Redis.DialTimeout, def: def.Storage.Redis.DialTimeout},
			{key: "read_timeout", value: cfg.Storage.Redis.ReadTimeout, def: def.Storage.Redis.ReadTimeout},
			{key: "write_timeout", value: cfg.Storage.Redis.WriteTimeout, def: def.Storage.Redis.WriteTimeout},
			{key: "key_prefix", value: cfg.Storage.Redis.KeyPrefix, def: def.Storage.Redis.KeyPrefix},
		}},
		{"tracking", []setting{
			{key: "flush_interval", value: cfg.Tracking.FlushInterval, def: def.Tracking.FlushInterval},
			{key: "excluded_schemes", value: cfg.Tracking.ExcludedSchemes, def: def.Tracking.ExcludedSchemes},
			{key: "tab_cache_size", value: cfg.Tracking.TabCacheSize, def: def.Tracking.TabCacheSize},
		}},
		{"dashboard", []setting{
			{key: "default_range", value: cfg.Dashboard.DefaultRange, def: def.Dashboard.DefaultRange},
			{key: "chart_limit", value: cfg.Dashboard.ChartLimit, def: def.Dashboard.ChartLimit},
			{key: "server_url", value: cfg.Dashboard.ServerURL, def: def.Dashboard.ServerURL},
		}},
		{"logging", []setting{
			{key: "level", value: cfg.Logging.Level, def: def.Logging.Level},
			{key: "format", value: cfg.Logging.Format, def: def.Logging.Format},
		}},
	}
}

// dumpConfig prints every setting. Settings that differ from their default
// are highlighted and show the default alongside.
func dumpConfig(w io.Writer, cfg, defaultCfg *config.Config, unknownKeys []string) {
	modified := color.New(color.FgYellow, color.Bold)
	unchanged := color.New(color.FgGreen)
	heading := color.New(color.FgCyan, color.Bold)

	for _, section := range sections(cfg, defaultCfg) {
		_, _ = heading.Fprintf(w, "\n[%s]\n", section.name)
		for _, s := range section.settings {
			value, def := fmt.Sprintf("%v", s.value), fmt.Sprintf("%v", s.def)
			if s.secret {
				value, def = mask(value), mask(def)
			}
			if reflect.DeepEqual(s.value, s.def) {
				_, _ = unchanged.Fprintf(w, "  %s = %s\n", s.key, value)
				continue
			}
			_, _ = modified.Fprintf(w, "  %s = %s  (default: %s)\n", s.key, value, def)
		}
	}

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)

		_, _ = heading.Fprintln(w, "\n[unknown keys, ignored]")
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(w, "  %s\n", key)
		}
	}

	_, _ = fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
