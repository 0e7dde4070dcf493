package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Items struct {
		Source string `yaml:"source"` // csv | xlsx | postgres
		Path   string `yaml:"path"`
		Sheet  string `yaml:"sheet"`
		TTL    string `yaml:"ttl"`
	} `yaml:"items"`
	Results struct {
		Backend      string `yaml:"backend"` // memory | redis | postgres | sqlite | gcs
		SQLitePath   string `yaml:"sqlite_path"`
		GCSBucket    string `yaml:"gcs_bucket"`
		EmulatorHost string `yaml:"emulator_host"`
	} `yaml:"results"`
	Quiz Quiz `yaml:"quiz"`
}

// Quiz configures which topics run in which week and how many correct answers retire an item.
type Quiz struct {
	Weeks   map[int][]string  `yaml:"weeks"`
	Labels  map[string]string `yaml:"labels"`
	Mastery struct {
		Default int                    `yaml:"default"`
		Topics  map[string]int         `yaml:"topics"`
		Weeks   map[int]map[string]int `yaml:"weeks"`
	} `yaml:"mastery"`
}

// Load reads YAML config from path, then applies .env and environment overrides.
// A missing file is not an error; defaults and the environment still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		case !os.IsNotExist(err):
			return cfg, err
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Mode, "LOG_MODE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.Items.Source, "ITEMS_SOURCE")
	setString(&cfg.Items.Path, "ITEMS_PATH")
	setString(&cfg.Results.Backend, "RESULTS_BACKEND")
	setString(&cfg.Results.SQLitePath, "RESULTS_SQLITE_PATH")
	setString(&cfg.Results.GCSBucket, "RESULTS_GCS_BUCKET")
	setString(&cfg.Results.EmulatorHost, "STORAGE_EMULATOR_HOST")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "development"
	}
	if cfg.Items.Source == "" {
		cfg.Items.Source = "csv"
	}
	if cfg.Items.Path == "" && cfg.Items.Source != "postgres" {
		cfg.Items.Path = "items.csv"
	}
	if cfg.Results.Backend == "" {
		cfg.Results.Backend = "memory"
	}
	if len(cfg.Quiz.Weeks) == 0 {
		cfg.Quiz.Weeks = map[int][]string{
			6:  {"organic", "units"},
			7:  {"units"},
			8:  {"organic"},
			9:  {"units"},
			10: {"organic"},
			12: {"organic", "units", "inorganic"},
		}
	}
	if len(cfg.Quiz.Labels) == 0 {
		cfg.Quiz.Labels = map[string]string{
			"organic":   "Organic Nomenclature",
			"units":     "Units / Dimensional Analysis",
			"inorganic": "Inorganic Nomenclature",
		}
	}
	if cfg.Quiz.Mastery.Default < 1 {
		cfg.Quiz.Mastery.Default = 1
	}
	if cfg.Quiz.Mastery.Weeks == nil {
		cfg.Quiz.Mastery.Weeks = map[int]map[string]int{12: {"inorganic": 4}}
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
