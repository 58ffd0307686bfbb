package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"betsync/internal/infra/validate"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Server struct {
		Addr                string   `yaml:"addr" validate:"required"`
		Pprof               bool     `yaml:"pprof"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds"`
		AdminAllowCIDRs     []string `yaml:"admin_allow_cidrs" validate:"dive,cidr"`
	} `yaml:"server"`
	Exchange struct {
		ID                string  `yaml:"id" validate:"oneof=bdaq betfair"`
		ReadOnlyURL       string  `yaml:"read_only_url" validate:"required,url"`
		SecureURL         string  `yaml:"secure_url" validate:"required,url"`
		APIVersion        string  `yaml:"api_version"`
		Currency          string  `yaml:"currency" validate:"len=3"`
		Language          string  `yaml:"language"`
		Username          string  `yaml:"username"`
		Password          string  `yaml:"password"`
		TimeoutSeconds    int     `yaml:"timeout_seconds" validate:"gt=0"`
		RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
		Burst             int     `yaml:"burst" validate:"gt=0"`
	} `yaml:"exchange"`
	Prices struct {
		Depth             int     `yaml:"depth" validate:"gt=0"`
		MaxMarketsPerCall int     `yaml:"max_markets_per_call" validate:"gt=0,lte=50"`
		ThrottleSeconds   float64 `yaml:"throttle_seconds" validate:"gte=0"`
		MarketIDs         []int64 `yaml:"market_ids"`
	} `yaml:"prices"`
	Orders struct {
		MaxPerPlaceCall     int     `yaml:"max_per_place_call" validate:"gt=0,lte=50"`
		MaxPerCancelCall    int     `yaml:"max_per_cancel_call" validate:"gt=0"`
		PollIntervalSeconds int     `yaml:"poll_interval_seconds" validate:"gt=0"`
		ResumeFromStore     bool    `yaml:"resume_from_store"`
		MaxStake            float64 `yaml:"max_stake" validate:"gte=0"`
		MaxLiability        float64 `yaml:"max_liability" validate:"gte=0"`
	} `yaml:"orders"`
	Store struct {
		PebblePath string `yaml:"pebble_path"`
	} `yaml:"store"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
}

func defaultConfig() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Server.Addr = ":9090"
	c.Server.Pprof = false
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AdminAllowCIDRs = []string{"127.0.0.0/8", "::1/128"}
	c.Exchange.ID = "bdaq"
	c.Exchange.ReadOnlyURL = "http://api.betdaq.com/v2.0/ReadOnlyService"
	c.Exchange.SecureURL = "https://api.betdaq.com/v2.0/Secure"
	c.Exchange.APIVersion = "2"
	c.Exchange.Currency = "GBP"
	c.Exchange.Language = "en"
	c.Exchange.TimeoutSeconds = 10
	c.Exchange.RequestsPerSecond = 2
	c.Exchange.Burst = 4
	c.Prices.Depth = 5
	c.Prices.MaxMarketsPerCall = 50
	c.Prices.ThrottleSeconds = 10
	c.Orders.MaxPerPlaceCall = 50
	c.Orders.MaxPerCancelCall = 50
	c.Orders.PollIntervalSeconds = 5
	c.Orders.ResumeFromStore = true
	c.Store.PebblePath = ""
	c.Kafka.Topic = "betsync.orders"
	return c
}

// Load builds the config from defaults, the YAML file named by BETSYNC_CONFIG,
// a .env file if present, and BETSYNC_* environment variables, in that order.
func Load() Config {
	c := defaultConfig()
	if path := os.Getenv("BETSYNC_CONFIG"); path != "" {
		if b, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(b, &c)
		}
	}
	// .env never overrides variables already set in the environment
	if path := os.Getenv("BETSYNC_ENV_FILE"); path != "" {
		_ = godotenv.Load(path)
	} else {
		_ = godotenv.Load()
	}
	if v := os.Getenv("BETSYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BETSYNC_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("BETSYNC_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("BETSYNC_PPROF"); v == "1" || v == "true" {
		c.Server.Pprof = true
	}
	if v := os.Getenv("BETSYNC_ADMIN_ALLOW_CIDRS"); v != "" {
		c.Server.AdminAllowCIDRs = splitCSV(v)
	}
	if v := os.Getenv("BETSYNC_EXCHANGE"); v != "" {
		c.Exchange.ID = strings.ToLower(v)
	}
	if v := os.Getenv("BETSYNC_READONLY_URL"); v != "" {
		c.Exchange.ReadOnlyURL = v
	}
	if v := os.Getenv("BETSYNC_SECURE_URL"); v != "" {
		c.Exchange.SecureURL = v
	}
	// credentials only from env
	if v := os.Getenv("BETSYNC_USERNAME"); v != "" {
		c.Exchange.Username = v
	}
	if v := os.Getenv("BETSYNC_PASSWORD"); v != "" {
		c.Exchange.Password = v
	}
	if v := os.Getenv("BETSYNC_PRICE_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Prices.Depth = n
		}
	}
	if v := os.Getenv("BETSYNC_PRICE_THROTTLE_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Prices.ThrottleSeconds = f
		}
	}
	if v := os.Getenv("BETSYNC_MARKET_IDS"); v != "" {
		ids := make([]int64, 0)
		for _, s := range splitCSV(v) {
			if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		c.Prices.MarketIDs = ids
	}
	if v := os.Getenv("BETSYNC_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Orders.PollIntervalSeconds = n
		}
	}
	if v := os.Getenv("BETSYNC_RESUME_FROM_STORE"); v != "" {
		c.Orders.ResumeFromStore = v == "1" || v == "true"
	}
	if v := os.Getenv("BETSYNC_MAX_STAKE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Orders.MaxStake = f
		}
	}
	if v := os.Getenv("BETSYNC_MAX_LIABILITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Orders.MaxLiability = f
		}
	}
	if v := os.Getenv("BETSYNC_PEBBLE_PATH"); v != "" {
		c.Store.PebblePath = v
	}
	if v := os.Getenv("BETSYNC_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitCSV(v)
	}
	if v := os.Getenv("BETSYNC_KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	return c
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
