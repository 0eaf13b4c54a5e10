package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath используется, если CONFIG_PATH не задан
const DefaultPath = "config/config.yaml"

// Config определяет структуру конфигурации всего приложения целиком
type Config struct {
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	Cache      `yaml:"cache"`
	Kafka      `yaml:"kafka"`
	RabbitMQ   `yaml:"rabbitmq"`
	Scheduler  `yaml:"scheduler"`
	Logger     `yaml:"logger"`
}

// HTTPServer содержит конфигурацию для HTTP-сервера
type HTTPServer struct {
	Port    string        `yaml:"port" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Postgres содержит конфигурацию для подключения к базе данных
type Postgres struct {
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Host     string `yaml:"host" validate:"required"`
	Port     string `yaml:"port" validate:"required"`
	DBName   string `yaml:"db_name" validate:"required"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns" validate:"gte=1"`
}

// Redis содержит конфигурацию для подключения к редису
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Cache выбирает хранилище кэша: redis (общий для всех инстансов) или memory
type Cache struct {
	Driver string `yaml:"driver" validate:"oneof=redis memory"`
	Prefix string `yaml:"prefix"`
}

// Kafka содержит конфигурацию для подключения к кафке
type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers" validate:"omitempty,dive,required"`
	Topic   string   `yaml:"topic" validate:"required_if=Enabled true"`
	GroupID string   `yaml:"group_id" validate:"required_if=Enabled true"`
}

// RabbitMQ содержит конфигурацию публикации уведомлений о смене статуса
type RabbitMQ struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url" validate:"required_if=Enabled true"`
	Exchange string `yaml:"exchange"`
}

// Scheduler содержит период фонового обновления кэша
type Scheduler struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gt=0"`
}

// Logger содержит конфигурацию для логгера
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Defaults возвращает конфигурацию, поверх которой накладывается файл
func Defaults() Config {
	return Config{
		HTTPServer: HTTPServer{Port: ":8080", Timeout: 5 * time.Second},
		Postgres:   Postgres{Port: "5432", SSLMode: "disable", MaxConns: 10},
		Redis:      Redis{Addr: "localhost:6379", PoolSize: 20},
		Cache:      Cache{Driver: "redis", Prefix: "restaurant:"},
		RabbitMQ:   RabbitMQ{Exchange: "notifications_fanout"},
		Scheduler:  Scheduler{RefreshInterval: 30 * time.Second},
		Logger:     Logger{Level: "info", Format: "text"},
	}
}

// Path возвращает путь к конфигу из CONFIG_PATH или путь по умолчанию
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load загружает и проверяет конфигурацию из файла по указанному пути
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if configPath == "" {
		return nil, fmt.Errorf("%s: config path is empty", op)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
		}
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal config: %w", op, err)
	}

	if err := newValidator().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}

	return &cfg, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	// required_if считает пустой, но не nil слайс заполненным, поэтому брокеров проверяем по длине
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		k, ok := sl.Current().Interface().(Kafka)
		if ok && k.Enabled && len(k.Brokers) == 0 {
			sl.ReportError(k.Brokers, "Brokers", "Brokers", "required_if", "Enabled true")
		}
	}, Kafka{})
	return v
}

// MustLoad загружает конфигурацию из файла по указанному пути
// в случае ошибки программа завершается с фатальной ошибкой
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// DSN собирает строку подключения к PostgreSQL
func (p Postgres) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}
