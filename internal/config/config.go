package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all settings. Environment variables win over the optional
// YAML file named by CONFIG_PATH; both win over the baked-in defaults.
type Config struct {
	InputDir        string        `yaml:"input_dir"`
	PostcodesPath   string        `yaml:"postcodes_path"`
	AddressesPath   string        `yaml:"addresses_path"`
	ABAPath         string        `yaml:"aba_path"`
	IncidentsDir    string        `yaml:"incidents_dir"`
	TaskIDsPath     string        `yaml:"task_ids_path"`
	DBPath          string        `yaml:"db_path"`
	HTTPPort        string        `yaml:"http_port"`
	RotaBaseURL     string        `yaml:"rota_base_url"`
	RotaClientID    string        `yaml:"rota_client_id"`
	RotaTimeout     time.Duration `yaml:"rota_timeout"`
	Priority        string        `yaml:"priority"`
	DayAssistUnit   string        `yaml:"day_assist_unit"`
	NightAssistUnit string        `yaml:"night_assist_unit"`
	AutoAssistance  bool          `yaml:"auto_assistance"`
	FuzzyMinScore   float64       `yaml:"fuzzy_min_score"`
	FuzzyLimit      int           `yaml:"fuzzy_limit"`
	EnableWatcher   bool          `yaml:"enable_watcher"`
	Environment     string        `yaml:"environment"`
}

// Load reads configuration from environment, optional .env file and the
// optional YAML file named by CONFIG_PATH.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		InputDir:        "./input",
		DBPath:          "./callout.db",
		HTTPPort:        "8080",
		RotaBaseURL:     "https://www.rota-dispatch.dk",
		RotaTimeout:     15 * time.Second,
		Priority:        "Kørsel 1",
		DayAssistUnit:   "Ass.Dag",
		NightAssistUnit: "Ass.Nat",
		AutoAssistance:  true,
		FuzzyMinScore:   0.72,
		FuzzyLimit:      20,
		EnableWatcher:   true,
		Environment:     "local",
	}
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		cfg = mergeFile(cfg, path)
	}

	cfg.InputDir = getenv("INPUT_DIR", cfg.InputDir)
	cfg.PostcodesPath = getenv("POSTCODES_PATH", cfg.PostcodesPath)
	cfg.AddressesPath = getenv("ADDRESSES_PATH", cfg.AddressesPath)
	cfg.ABAPath = getenv("ABA_PATH", cfg.ABAPath)
	cfg.IncidentsDir = getenv("INCIDENTS_DIR", cfg.IncidentsDir)
	cfg.TaskIDsPath = getenv("TASK_IDS_PATH", cfg.TaskIDsPath)
	cfg.DBPath = getenv("DB_PATH", cfg.DBPath)
	cfg.HTTPPort = getenv("PORT", cfg.HTTPPort)
	cfg.RotaBaseURL = getenv("ROTA_BASE_URL", cfg.RotaBaseURL)
	cfg.RotaClientID = getenv("ROTA_CLIENT_ID", cfg.RotaClientID)
	cfg.RotaTimeout = getenvDuration("ROTA_TIMEOUT", cfg.RotaTimeout)
	cfg.Priority = getenv("PRIORITY", cfg.Priority)
	cfg.DayAssistUnit = getenv("DAY_ASSIST_UNIT", cfg.DayAssistUnit)
	cfg.NightAssistUnit = getenv("NIGHT_ASSIST_UNIT", cfg.NightAssistUnit)
	cfg.AutoAssistance = getenvBool("AUTO_ASSISTANCE", cfg.AutoAssistance)
	cfg.FuzzyMinScore = getenvFloat("FUZZY_MIN_SCORE", cfg.FuzzyMinScore)
	cfg.FuzzyLimit = clampInt(getenvInt("FUZZY_LIMIT", cfg.FuzzyLimit), 1, 200)
	cfg.EnableWatcher = getenvBool("ENABLE_WATCHER", cfg.EnableWatcher)
	cfg.Environment = getenv("ENVIRONMENT", cfg.Environment)

	cfg.applyInputDirDefaults()

	log.Printf("config: input_dir=%s db=%s env=%s", cfg.InputDir, cfg.DBPath, cfg.Environment)
	return cfg
}

// applyInputDirDefaults fills unset source paths from the conventional file
// names under InputDir.
func (c *Config) applyInputDirDefaults() {
	if c.PostcodesPath == "" {
		c.PostcodesPath = filepath.Join(c.InputDir, "postnumre.csv")
	}
	if c.AddressesPath == "" {
		c.AddressesPath = filepath.Join(c.InputDir, "adresser.csv")
	}
	if c.ABAPath == "" {
		c.ABAPath = filepath.Join(c.InputDir, "aba.csv")
	}
	if c.IncidentsDir == "" {
		c.IncidentsDir = filepath.Join(c.InputDir, "pickliste")
	}
	if c.TaskIDsPath == "" {
		c.TaskIDsPath = filepath.Join(c.InputDir, "task_ids.csv")
	}
}

func mergeFile(base Config, path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("config: cannot read %s: %v", path, err)
		return base
	}
	if err := yaml.Unmarshal(data, &base); err != nil {
		log.Printf("config: cannot parse %s: %v", path, err)
	}
	return base
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
