package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env:"BIND_IP" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env:"PORT" env-default:"8080"`
}

type MongoConfig struct {
	Host     string `yaml:"host" env:"MONGO_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	User     string `yaml:"user" env:"MONGO_USER" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"refhub"`
}

type AuthConfig struct {
	JwtSecret    string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"change_this_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"168h"`
	BroadcastKey string        `yaml:"broadcast_key" env:"BROADCAST_KEY" env-default:""`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" env:"TELEGRAM_ENABLED" env-default:"false"`
	ApiKey  string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
}

type WhatsAppConfig struct {
	// BaseUrl override is for tests; empty means the CallMeBot endpoint.
	BaseUrl string `yaml:"base_url" env:"WHATSAPP_BASE_URL" env-default:""`
}

// DefaultAdminConfig seeds the fallback attribution target on first start.
type DefaultAdminConfig struct {
	Username string `yaml:"username" env:"DEFAULT_ADMIN_USERNAME" env-default:"system"`
	Phone    string `yaml:"phone" env:"DEFAULT_ADMIN_PHONE" env-default:""`
	ApiKey   string `yaml:"api_key" env:"DEFAULT_ADMIN_API_KEY" env-default:""`
}

type Config struct {
	Listen       Listen             `yaml:"listen"`
	Mongo        MongoConfig        `yaml:"mongo"`
	Auth         AuthConfig         `yaml:"auth"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	WhatsApp     WhatsAppConfig     `yaml:"whatsapp"`
	DefaultAdmin DefaultAdminConfig `yaml:"default_admin"`
	Env          string             `yaml:"env" env:"ENV" env-default:"local"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
