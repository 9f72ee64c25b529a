package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
)

// Service names. Each binary loads the sections it needs.
const (
	ServiceSpot         = "spot-service"
	ServiceReservation  = "reservation-service"
	ServiceBilling      = "billing-service"
	ServiceSensor       = "sensor-service"
	ServiceNotification = "notification-service"
	ServiceGateway      = "gateway"
)

// Consistency modes for reservation creation.
const (
	ConsistencyRace  = "race"
	ConsistencyLease = "lease"
)

// MinReconnectDelay is the smallest accepted RABBITMQ_RECONNECT_DELAY.
const MinReconnectDelay = 100 * time.Millisecond

var defaultPorts = map[string]string{
	ServiceSpot:         "3001",
	ServiceReservation:  "3002",
	ServiceBilling:      "3003",
	ServiceSensor:       "3004",
	ServiceNotification: "3005",
	ServiceGateway:      "8080",
}

type Config struct {
	Service      string
	LogLevel     string
	Server       ServerConfig
	Database     DatabaseConfig
	RabbitMQ     RabbitMQConfig
	Redis        RedisConfig
	Services     ServicesConfig
	Reservation  ReservationConfig
	Billing      BillingConfig
	Notification NotificationConfig
	Gateway      GatewayConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RabbitMQConfig struct {
	URL            string
	Host           string
	Port           string
	User           string
	Password       string
	VHost          string
	Exchange       string
	ReconnectDelay time.Duration
	Jitter         float64
	Heartbeat      time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServicesConfig holds the base URLs of peer services.
type ServicesConfig struct {
	SpotURL         string
	ReservationURL  string
	BillingURL      string
	SensorURL       string
	NotificationURL string
}

type GatewayConfig struct {
	ProxyTimeout time.Duration
}

type ReservationConfig struct {
	Consistency string
	LeaseTTL    time.Duration
}

type BillingConfig struct {
	FlatAmount float64
}

type NotificationConfig struct {
	WebhookURL     string
	WebhookSecret  string
	WebhookTimeout time.Duration
}

// Load reads the configuration for the given service from the environment.
// Only the variables the service actually needs are required.
func Load(service string) (*Config, error) {
	var missing, invalid []string

	duration := func(key, def string) time.Duration {
		d, err := parseDuration(getenv(key, def))
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}

	require := func(key, def string) string {
		val := os.Getenv(key)
		if val == "" {
			val = def
		}
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	cfg := &Config{
		Service:  service,
		LogLevel: getenv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port: getenv("PORT", defaultPorts[service]),
			Host: getenv("SERVER_HOST", "0.0.0.0"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:            firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("RABBITMQ_URI")),
			Host:           getenv("RABBITMQ_HOST", "localhost"),
			Port:           getenv("RABBITMQ_PORT", "5672"),
			User:           getenv("RABBITMQ_USER", "guest"),
			Password:       getenv("RABBITMQ_PASSWORD", "guest"),
			VHost:          getenv("RABBITMQ_VHOST", "/"),
			Exchange:       getenv("RABBITMQ_EXCHANGE", "parking_events"),
			ReconnectDelay: duration("RABBITMQ_RECONNECT_DELAY", "5s"),
			Jitter:         cast.ToFloat64(getenv("RABBITMQ_RECONNECT_JITTER", "0")),
			Heartbeat:      duration("RABBITMQ_HEARTBEAT", "10s"),
		},
		Services: ServicesConfig{
			SpotURL:         firstNonEmpty(os.Getenv("SPOT_SERVICE_URL"), getenv("PARKING_SPOT_SERVICE_URL", "http://localhost:3001")),
			ReservationURL:  getenv("RESERVATION_SERVICE_URL", "http://localhost:3002"),
			BillingURL:      getenv("BILLING_SERVICE_URL", "http://localhost:3003"),
			SensorURL:       getenv("SENSOR_SERVICE_URL", "http://localhost:3004"),
			NotificationURL: getenv("NOTIFICATION_SERVICE_URL", "http://localhost:3005"),
		},
	}

	switch service {
	case ServiceSpot, ServiceReservation, ServiceBilling:
		cfg.Database = DatabaseConfig{
			Host:     require("DB_HOST", "localhost"),
			Port:     require("DB_PORT", "5432"),
			User:     require("DB_USER", ""),
			Password: require("DB_PASSWORD", ""),
			DBName:   require("DB_NAME", ""),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		}
	}

	if service == ServiceReservation {
		cfg.Reservation = ReservationConfig{
			Consistency: getenv("RESERVATION_CONSISTENCY", ConsistencyRace),
			LeaseTTL:    duration("RESERVATION_LEASE_TTL", "10s"),
		}
		if cfg.Reservation.Consistency == ConsistencyLease {
			cfg.Redis = RedisConfig{
				Addr:     require("REDIS_ADDR", ""),
				Password: os.Getenv("REDIS_PASSWORD"),
				DB:       cast.ToInt(getenv("REDIS_DB", "0")),
			}
		} else if cfg.Reservation.Consistency != ConsistencyRace {
			return nil, fmt.Errorf("invalid RESERVATION_CONSISTENCY %q: expected %q or %q",
				cfg.Reservation.Consistency, ConsistencyRace, ConsistencyLease)
		}
	}

	if service == ServiceBilling {
		cfg.Billing = BillingConfig{
			FlatAmount: cast.ToFloat64(getenv("BILL_FLAT_AMOUNT", "50")),
		}
	}

	if service == ServiceNotification {
		cfg.Notification = NotificationConfig{
			WebhookURL:     os.Getenv("NOTIFICATION_WEBHOOK_URL"),
			WebhookSecret:  os.Getenv("NOTIFICATION_WEBHOOK_SECRET"),
			WebhookTimeout: duration("NOTIFICATION_WEBHOOK_TIMEOUT", "10s"),
		}
		if cfg.Notification.WebhookURL != "" && cfg.Notification.WebhookSecret == "" {
			missing = append(missing, "NOTIFICATION_WEBHOOK_SECRET")
		}
	}

	if service == ServiceGateway {
		cfg.Gateway = GatewayConfig{
			ProxyTimeout: duration("GATEWAY_PROXY_TIMEOUT", "30s"),
		}
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	if cfg.RabbitMQ.ReconnectDelay < MinReconnectDelay {
		return nil, fmt.Errorf("RABBITMQ_RECONNECT_DELAY must be at least %s, got %s",
			MinReconnectDelay, cfg.RabbitMQ.ReconnectDelay)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrationURL returns the URL form used by golang-migrate.
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	vhost := c.VHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		c.User, c.Password, c.Host, c.Port, vhost)
}

// parseDuration reads a Go duration ("5s", "1m30s"). A bare number is taken
// as seconds.
func parseDuration(raw string) (time.Duration, error) {
	if secs, err := cast.ToFloat64E(raw); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := cast.ToDurationE(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
