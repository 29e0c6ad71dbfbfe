// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构，不同服务只读取其中相关的部分。
type Config struct {
	App       AppConfig       `yaml:"app"`
	Infra     InfraConfig     `yaml:"infra"`
	Checkout  CheckoutConfig  `yaml:"checkout"`
	Inventory InventoryConfig `yaml:"inventory"`
	Cart      CartConfig      `yaml:"cart"`
	Pricing   PricingConfig   `yaml:"pricing"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
}

type InfraConfig struct {
	Jaeger    JaegerConfig      `yaml:"jaeger"`
	Kafka     KafkaConfig       `yaml:"kafka"`
	Redis     RedisConfig       `yaml:"redis"`
	MySQL     MySQLConfig       `yaml:"mysql"`
	Zookeeper ZookeeperConfig   `yaml:"zookeeper"`
	Nacos     NacosConfig       `yaml:"nacos"`
	Services  map[string]string `yaml:"services"` // Nacos 关闭时使用的静态地址表
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	GroupID string `yaml:"groupId"`
}

func (k KafkaConfig) BrokerList() []string {
	return strings.Split(k.Brokers, ",")
}

type RedisConfig struct {
	Addrs string `yaml:"addrs"`
}

type MySQLConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
}

type ZookeeperConfig struct {
	Servers        string        `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

type NacosConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

// CheckoutConfig 控制 saga 的整体超时和每个端口调用的超时。
type CheckoutConfig struct {
	Timeout             time.Duration `yaml:"timeout"`
	InventoryTimeout    time.Duration `yaml:"inventoryTimeout"`
	PricingTimeout      time.Duration `yaml:"pricingTimeout"`
	OrderTimeout        time.Duration `yaml:"orderTimeout"`
	CompensationTimeout time.Duration `yaml:"compensationTimeout"`
	ReservationTTL      time.Duration `yaml:"reservationTTL"`
	IdempotencyTTL      time.Duration `yaml:"idempotencyTTL"`
}

type InventoryConfig struct {
	SweepInterval time.Duration `yaml:"sweepInterval"`
	CASRetries    int           `yaml:"casRetries"`
}

type CartConfig struct {
	Expiry time.Duration `yaml:"expiry"`
}

// PricingConfig 中的金额和比例用字符串表示，由 decimal 解析。
type PricingConfig struct {
	RulesFile         string `yaml:"rulesFile"`
	TaxRate           string `yaml:"taxRate"`
	BulkThreshold     string `yaml:"bulkThreshold"`
	BulkDiscountRate  string `yaml:"bulkDiscountRate"`
	BulkPromotionCode string `yaml:"bulkPromotionCode"`
}

// DefaultConfig 返回本地开发可直接运行的默认值。
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Port: 8080, LogLevel: "info"},
		Infra: InfraConfig{
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces", SampleRatio: 1},
			Kafka:     KafkaConfig{Brokers: "localhost:9092", GroupID: "storefront"},
			Redis:     RedisConfig{Addrs: "localhost:6379"},
			MySQL:     MySQLConfig{User: "root", Password: "root", Addr: "localhost:3306", Database: "storefront"},
			Zookeeper: ZookeeperConfig{Servers: "localhost:2181", SessionTimeout: 10 * time.Second},
			Nacos:     NacosConfig{Addrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Services: map[string]string{
				"inventory-service": "http://localhost:8081",
				"pricing-service":   "http://localhost:8082",
				"order-service":     "http://localhost:8083",
				"checkout-service":  "http://localhost:8084",
				"push-gateway":      "http://localhost:8085",
			},
		},
		Checkout: CheckoutConfig{
			Timeout:             15 * time.Second,
			InventoryTimeout:    3 * time.Second,
			PricingTimeout:      3 * time.Second,
			OrderTimeout:        5 * time.Second,
			CompensationTimeout: 5 * time.Second,
			ReservationTTL:      15 * time.Minute,
			IdempotencyTTL:      time.Minute,
		},
		Inventory: InventoryConfig{SweepInterval: 30 * time.Second, CASRetries: 3},
		Cart:      CartConfig{Expiry: 7 * 24 * time.Hour},
		Pricing: PricingConfig{
			TaxRate:           "0.085",
			BulkThreshold:     "100",
			BulkDiscountRate:  "0.05",
			BulkPromotionCode: "BULK_DISCOUNT_5",
		},
	}
}

// LoadConfig 读取 YAML 文件（不存在时使用默认值），再应用环境变量覆盖。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Kafka.Brokers = getEnv("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.MySQL.User = getEnv("MYSQL_USER", cfg.Infra.MySQL.User)
	cfg.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.Infra.MySQL.Password)
	cfg.Infra.MySQL.Addr = getEnv("MYSQL_ADDR", cfg.Infra.MySQL.Addr)
	cfg.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", cfg.Infra.MySQL.Database)
	cfg.Infra.Zookeeper.Servers = getEnv("ZOOKEEPER_SERVERS", cfg.Infra.Zookeeper.Servers)
	cfg.Infra.Nacos.Addrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.Addrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	if v, err := strconv.ParseBool(getEnv("NACOS_ENABLED", "")); err == nil {
		cfg.Infra.Nacos.Enabled = v
	}
	if d, err := time.ParseDuration(getEnv("CHECKOUT_TIMEOUT", "")); err == nil {
		cfg.Checkout.Timeout = d
	}
	cfg.Pricing.RulesFile = getEnv("PRICING_RULES_FILE", cfg.Pricing.RulesFile)
}

var (
	configOnce    sync.Once
	currentConfig *Config
)

// GetCurrentConfig 返回进程级配置，首次调用时从 CONFIG_FILE 加载。
func GetCurrentConfig() *Config {
	configOnce.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_FILE", "config.yaml"))
		if err != nil {
			panic(err)
		}
		currentConfig = cfg
	})
	return currentConfig
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
