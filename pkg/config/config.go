package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Courier      CourierConfig
	Allocation   AllocationConfig
	Checkout     CheckoutConfig
	GoogleMaps   GoogleMapsConfig
	FeatureFlags FeatureFlagsConfig
	Metrics      MetricsConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKROUTE_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKROUTE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOCKROUTE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKROUTE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STOCKROUTE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKROUTE_DB_DSN"`
	Driver string `envconfig:"STOCKROUTE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOCKROUTE_DB_HOST"`
	Port     int    `envconfig:"STOCKROUTE_DB_PORT" default:"5432"`
	User     string `envconfig:"STOCKROUTE_DB_USER"`
	Password string `envconfig:"STOCKROUTE_DB_PASSWORD"`
	Name     string `envconfig:"STOCKROUTE_DB_NAME"`
	SSLMode  string `envconfig:"STOCKROUTE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKROUTE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKROUTE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKROUTE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKROUTE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL            string        `envconfig:"STOCKROUTE_REDIS_URL" required:"true"`
	Address        string        `envconfig:"STOCKROUTE_REDIS_ADDR"`
	Password       string        `envconfig:"STOCKROUTE_REDIS_PASSWORD"`
	DB             int           `envconfig:"STOCKROUTE_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"STOCKROUTE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"STOCKROUTE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"STOCKROUTE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"STOCKROUTE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"STOCKROUTE_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"STOCKROUTE_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

type JWTConfig struct {
	Secret string `envconfig:"STOCKROUTE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOCKROUTE_JWT_ISSUER" required:"true"`
}

type CourierConfig struct {
	BaseURL        string        `envconfig:"STOCKROUTE_COURIER_BASE_URL" default:"https://apiv2.shiprocket.in/v1/external"`
	Email          string        `envconfig:"STOCKROUTE_COURIER_EMAIL" required:"true"`
	Password       string        `envconfig:"STOCKROUTE_COURIER_PASSWORD" required:"true"`
	Timeout        time.Duration `envconfig:"STOCKROUTE_COURIER_TIMEOUT" default:"20s"`
	WebhookToken   string        `envconfig:"STOCKROUTE_COURIER_WEBHOOK_TOKEN"`
	PackageLength  float64       `envconfig:"STOCKROUTE_COURIER_PACKAGE_LENGTH_CM" default:"10"`
	PackageBreadth float64       `envconfig:"STOCKROUTE_COURIER_PACKAGE_BREADTH_CM" default:"10"`
	PackageHeight  float64       `envconfig:"STOCKROUTE_COURIER_PACKAGE_HEIGHT_CM" default:"5"`
	UnitWeightKg   float64       `envconfig:"STOCKROUTE_COURIER_UNIT_WEIGHT_KG" default:"0.5"`
	PickupDelay    time.Duration `envconfig:"STOCKROUTE_COURIER_PICKUP_DELAY" default:"24h"`
}

type AllocationConfig struct {
	SplitOrders bool `envconfig:"STOCKROUTE_ALLOCATION_SPLIT_ORDERS" default:"true"`
	AutoFulfill bool `envconfig:"STOCKROUTE_ALLOCATION_AUTO_FULFILL" default:"true"`
}

type CheckoutConfig struct {
	ConvenienceFee string `envconfig:"STOCKROUTE_CHECKOUT_CONVENIENCE_FEE" default:"0"`
	GiftWrapFee    string `envconfig:"STOCKROUTE_CHECKOUT_GIFT_WRAP_FEE" default:"0"`
}

// Fees returns the parsed convenience and gift-wrap fees.
func (c CheckoutConfig) Fees() (decimal.Decimal, decimal.Decimal) {
	convenience, _ := decimal.NewFromString(c.ConvenienceFee)
	giftWrap, _ := decimal.NewFromString(c.GiftWrapFee)
	return convenience, giftWrap
}

func (c CheckoutConfig) validate() error {
	for env, raw := range map[string]string{
		EnvConvenienceFee: c.ConvenienceFee,
		EnvGiftWrapFee:    c.GiftWrapFee,
	} {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%s must be a decimal: %w", env, err)
		}
		if value.IsNegative() {
			return fmt.Errorf("%s must not be negative", env)
		}
	}
	return nil
}

type GoogleMapsConfig struct {
	APIKey string `envconfig:"STOCKROUTE_GOOGLE_MAPS_API_KEY"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOCKROUTE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOCKROUTE_AUTO_MIGRATE" default:"false"`
}

// RateLimitConfig throttles anonymous order placement. A zero limit disables
// that dimension.
type RateLimitConfig struct {
	PlaceWindow     time.Duration `envconfig:"STOCKROUTE_RATE_LIMIT_PLACE_WINDOW" default:"1m"`
	PlaceIPLimit    int           `envconfig:"STOCKROUTE_RATE_LIMIT_PLACE_IP" default:"30"`
	PlaceEmailLimit int           `envconfig:"STOCKROUTE_RATE_LIMIT_PLACE_EMAIL" default:"10"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"STOCKROUTE_METRICS_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:stockroute.db?cache=shared"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
