package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/types"
	"github.com/vocdoni/davinci-pool/verifier"
)

const (
	defaultAPIHost   = "0.0.0.0"
	defaultAPIPort   = 9095
	defaultLogLevel  = "info"
	defaultLogOutput = "stdout"
	defaultDBType    = db.TypePebble
	defaultDatadir   = ".davinci-pool" // Will be prefixed with user's home directory
	envPrefix        = "DAVINCI_POOL"
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// Config holds the application configuration
type Config struct {
	API      APIConfig
	Log      LogConfig
	DB       DBConfig
	Pool     PoolConfig
	Verifier VerifierConfig
	Datadir  string
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"`
	ErrorFile string `mapstructure:"errorFile"`
}

// DBConfig holds the storage backend configuration
type DBConfig struct {
	Type string `mapstructure:"type"`
}

// PoolConfig holds the identities and policy used to bootstrap a new pool.
type PoolConfig struct {
	Authority     string `mapstructure:"authority"`
	Custody       string `mapstructure:"custody"`
	VerifierMode  uint8  `mapstructure:"verifierMode"`
	VerifierMagic string `mapstructure:"verifierMagic"`
	Chunks        uint64 `mapstructure:"chunks"`
}

// VerifierConfig holds the proof verifier configuration
type VerifierConfig struct {
	CacheSize    int      `mapstructure:"cacheSize"`
	DelegatedURL string   `mapstructure:"delegatedURL"`
	DevTargets   []string `mapstructure:"devTargets"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("db.type", defaultDBType)
	v.SetDefault("datadir", defaultDatadirPath)
	v.SetDefault("pool.verifierMode", uint8(types.VerifierModeStubMagic))
	v.SetDefault("verifier.cacheSize", verifier.DefaultCacheSize)

	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.String("log.errorFile", "", "file to also write warnings and errors to")
	flag.String("db.type", defaultDBType, fmt.Sprintf("database backend (%s, %s or %s)", db.TypePebble, db.TypeLevelDB, db.TypeInMem))
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database files")
	flag.String("pool.authority", "", "authority address used to bootstrap a new pool")
	flag.String("pool.custody", "", "custody address used to bootstrap a new pool")
	flag.Uint8("pool.verifierMode", uint8(types.VerifierModeStubMagic), "initial verifier mode (0 disabled, 1 stub-magic, 2 delegated, 3 structural-plonk)")
	flag.String("pool.verifierMagic", "", "initial verifier magic")
	flag.Uint64("pool.chunks", 0, "number of nullifier chunks to provision at startup")
	flag.Int("verifier.cacheSize", verifier.DefaultCacheSize, "structural verification cache size")
	flag.String("verifier.delegatedURL", "", "base URL of a remote delegated verifier")
	flag.StringSlice("verifier.devTargets", []string{}, "delegated targets served by the in-process dev verifier")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "davinci-pool v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: davinci-pool [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  prefixed with %s_ and with dots (.) replaced by underscores (_).\n", envPrefix)
		fmt.Fprintf(os.Stderr, "  For example, %s_POOL_AUTHORITY or %s_API_PORT\n", envPrefix, envPrefix)
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Bootstrap a new pool\n")
		fmt.Fprintf(os.Stderr, "  davinci-pool --pool.authority=0xa11c... --pool.custody=0xc0c0... --pool.verifierMagic=VALID --pool.chunks=4\n\n")
		fmt.Fprintf(os.Stderr, "  # Delegate proof verification to a remote service\n")
		fmt.Fprintf(os.Stderr, "  davinci-pool --verifier.delegatedURL=http://localhost:8080/verify\n")
	}

	flag.CommandLine.SortFlags = false
	flag.Parse()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if !slices.Contains([]string{db.TypePebble, db.TypeLevelDB, db.TypeInMem}, cfg.DB.Type) {
		return fmt.Errorf("invalid db type %q", cfg.DB.Type)
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}
	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", cfg.API.Port)
	}
	if !types.VerifierMode(cfg.Pool.VerifierMode).Valid() {
		return fmt.Errorf("invalid verifier mode %d", cfg.Pool.VerifierMode)
	}
	for name, addr := range map[string]string{"authority": cfg.Pool.Authority, "custody": cfg.Pool.Custody} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s address %q", name, addr)
		}
	}
	return nil
}
