package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the service configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Elastic    ElasticConfig
	ServiceBus ServiceBusConfig
	NewRelic   NewRelicConfig
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port int
	Mode string // debug, release, test
	// AdminToken guards administrative endpoints (registration management,
	// opportunity writes, fallback-store cleanup).
	AdminToken string
}

// DatabaseConfig holds the primary store configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the fallback store configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ElasticConfig holds the Elasticsearch configuration
type ElasticConfig struct {
	URL      string
	Username string
	Password string
	Index    string
	Enabled  bool
}

// ServiceBusConfig holds the Azure Service Bus configuration
type ServiceBusConfig struct {
	ConnectionString string
	QueueName        string
}

// NewRelicConfig holds the New Relic configuration
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// InitConfig initializes the configuration using Viper
func InitConfig(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/signup-service")
		viper.SetConfigName("config")
	}

	// SIGNUP_SERVER_PORT overrides server.port, and so on
	viper.SetEnvPrefix("SIGNUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("No config file found, using defaults and environment variables")
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	viper.SetDefault("server.port", 8094)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.admintoken", "")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "signup")
	viper.SetDefault("database.password", "signup")
	viper.SetDefault("database.dbname", "signup_service_db")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("elastic.url", "http://localhost:9200")
	viper.SetDefault("elastic.index", "opportunities")
	viper.SetDefault("elastic.enabled", false)

	// No default connection string for security
	viper.SetDefault("servicebus.queuename", "registration-events")

	viper.SetDefault("newrelic.appname", "Signup Service Local")
	viper.SetDefault("newrelic.enabled", false)
}

// Load loads the configuration
func Load() (*Config, error) {
	serverConfig := ServerConfig{
		Port:       viper.GetInt("server.port"),
		Mode:       viper.GetString("server.mode"),
		AdminToken: viper.GetString("server.admintoken"),
	}

	dbConfig := DatabaseConfig{
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
	}

	redisConfig := RedisConfig{
		Host:     viper.GetString("redis.host"),
		Port:     viper.GetInt("redis.port"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}

	elasticConfig := ElasticConfig{
		URL:      viper.GetString("elastic.url"),
		Username: viper.GetString("elastic.username"),
		Password: viper.GetString("elastic.password"),
		Index:    viper.GetString("elastic.index"),
		Enabled:  viper.GetBool("elastic.enabled"),
	}

	serviceBusConfig := ServiceBusConfig{
		ConnectionString: viper.GetString("servicebus.connectionstring"),
		QueueName:        viper.GetString("servicebus.queuename"),
	}

	newRelicConfig := NewRelicConfig{
		AppName:    viper.GetString("newrelic.appname"),
		LicenseKey: viper.GetString("newrelic.licensekey"),
		Enabled:    viper.GetBool("newrelic.enabled"),
	}

	return &Config{
		Server:     serverConfig,
		Database:   dbConfig,
		Redis:      redisConfig,
		Elastic:    elasticConfig,
		ServiceBus: serviceBusConfig,
		NewRelic:   newRelicConfig,
	}, nil
}
