package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Ashenafi-pixel/jackpot-royale/money"
)

type Config struct {
	Port        int
	DataDir     string
	StoreDriver string // file, memory, postgres, mysql, redis, remote

	DatabaseURL    string
	MySQLDSN       string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RemoteStoreURL string
	AMQPURL        string // empty disables spin events
	AMQPQueue      string

	PaytablePath string
	LogLevel     string
	LogFile      string

	StartCredits decimal.Decimal
	MinStake     decimal.Decimal
	MaxStake     decimal.Decimal
	StakeStep    decimal.Decimal
	DefaultStake decimal.Decimal

	JackpotSeed             decimal.Decimal
	JackpotFloor            decimal.Decimal
	JackpotIncrementPercent decimal.Decimal
	JackpotDivergence       decimal.Decimal
	JackpotGrowthInterval   time.Duration
	JackpotGrowthAmount     decimal.Decimal
	JackpotRefreshInterval  time.Duration

	PersistTimeout time.Duration
	SpecialPrizes  bool
}

// source resolves a key from the environment first, then the optional YAML file.
// File keys are the lower-cased variable names (port, store_driver, ...).
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[strings.ToLower(key)]
}

func (s source) str(key, def string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return def
}

func (s source) integer(key string, def int) int {
	if v, err := strconv.Atoi(s.get(key)); err == nil && v >= 0 {
		return v
	}
	return def
}

func (s source) boolean(key string, def bool) bool {
	if v, err := strconv.ParseBool(s.get(key)); err == nil {
		return v
	}
	return def
}

func (s source) duration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(s.get(key)); err == nil && v >= 0 {
		return v
	}
	return def
}

func (s source) amount(key, def string) decimal.Decimal {
	d := money.Must(def)
	v := money.Parse(s.get(key), d)
	if v.IsNegative() {
		return d
	}
	return v
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v != nil {
			out[strings.ToLower(k)] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// Load reads the configuration. CONFIG_FILE, when set, must point to a readable YAML file.
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}
	port := src.integer("PORT", 8081)
	if port == 0 {
		port = 8081
	}
	cfg := &Config{
		Port:        port,
		DataDir:     src.str("DATA_DIR", "data"),
		StoreDriver: strings.ToLower(src.str("STORE_DRIVER", "file")),

		DatabaseURL:    src.str("DATABASE_URL", ""),
		MySQLDSN:       src.str("MYSQL_DSN", ""),
		RedisAddr:      src.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  src.str("REDIS_PASSWORD", ""),
		RedisDB:        src.integer("REDIS_DB", 0),
		RemoteStoreURL: src.str("REMOTE_STORE_URL", "http://localhost:3000"),
		AMQPURL:        src.str("AMQP_URL", ""),
		AMQPQueue:      src.str("AMQP_QUEUE", "jackpot-royale.spins"),

		PaytablePath: src.str("PAYTABLE_PATH", ""),
		LogLevel:     src.str("LOG_LEVEL", "info"),
		LogFile:      src.str("LOG_FILE", ""),

		StartCredits: src.amount("START_CREDITS", "100"),
		MinStake:     src.amount("MIN_STAKE", "0.25"),
		MaxStake:     src.amount("MAX_STAKE", "10"),
		StakeStep:    src.amount("STAKE_STEP", "0.25"),
		DefaultStake: src.amount("DEFAULT_STAKE", "1"),

		JackpotSeed:             src.amount("JACKPOT_SEED", "10000"),
		JackpotFloor:            src.amount("JACKPOT_FLOOR", "1000"),
		JackpotIncrementPercent: src.amount("JACKPOT_INCREMENT_PERCENT", "100"),
		JackpotDivergence:       src.amount("JACKPOT_DIVERGENCE", "1000"),
		JackpotGrowthInterval:   src.duration("JACKPOT_GROWTH_INTERVAL", 5*time.Second),
		JackpotGrowthAmount:     src.amount("JACKPOT_GROWTH_AMOUNT", "0.01"),
		JackpotRefreshInterval:  src.duration("JACKPOT_REFRESH_INTERVAL", 30*time.Second),

		PersistTimeout: src.duration("PERSIST_TIMEOUT", 2*time.Second),
		SpecialPrizes:  src.boolean("SPECIAL_PRIZES", false),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the relations between stake and jackpot settings.
func (c *Config) Validate() error {
	if !c.StakeStep.IsPositive() || !c.MinStake.IsPositive() {
		return fmt.Errorf("config: stake step and minimum must be positive")
	}
	if c.MaxStake.LessThan(c.MinStake) {
		return fmt.Errorf("config: MAX_STAKE %s below MIN_STAKE %s", c.MaxStake, c.MinStake)
	}
	if c.DefaultStake.LessThan(c.MinStake) || c.DefaultStake.GreaterThan(c.MaxStake) {
		return fmt.Errorf("config: DEFAULT_STAKE %s outside [%s, %s]", c.DefaultStake, c.MinStake, c.MaxStake)
	}
	if c.JackpotSeed.LessThan(c.JackpotFloor) {
		return fmt.Errorf("config: JACKPOT_SEED %s below JACKPOT_FLOOR %s", c.JackpotSeed, c.JackpotFloor)
	}
	return nil
}

func (c *Config) Addr() string { return ":" + strconv.Itoa(c.Port) }
