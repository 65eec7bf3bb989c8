package config

import (
	"flag"
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const EnvProduction = "production"

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer HTTPServer `yaml:"http_server" env-required:"true"`
	PGSQL      PGSQL      `yaml:"pgsql" env-required:"true"`
	Redis      Redis      `yaml:"redis"`
	MinIO      MinIO      `yaml:"minio" env-required:"true"`
	Media      Media      `yaml:"media"`
	JWTSecret  string     `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
}

type HTTPServer struct {
	Address string `yaml:"address" env-default:"localhost:8080"`
}

type PGSQL struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-default:"postgres"`
	Password string `yaml:"password" env-default:"password"`
	DBName   string `yaml:"dbname" env-default:"bookworm_db"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

type Redis struct {
	Addr     string `yaml:"addr" env-default:"localhost:6379"`
	Password string `yaml:"password" env-default:""`
	DB       int    `yaml:"db" env-default:"0"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint" env-default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	BucketName      string `yaml:"bucket_name" env-default:"book-covers"`
	UseSSL          bool   `yaml:"use_ssl" env-default:"false"`
}

type Media struct {
	MaxImageBytes    int64    `yaml:"max_image_bytes" env-default:"5242880"`
	AllowedMimeTypes []string `yaml:"allowed_mime_types" env-default:"image/jpeg,image/png,image/gif,image/webp"`
}

func MustLoad() *Config {
	var configPath string

	configPath = os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("config path must be provided")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist at path: %s", configPath)
	}

	var cfg Config

	err := cleanenv.ReadConfig(configPath, &cfg)

	if err != nil {
		log.Fatalf("failed to read config: %s", err)
	}

	return &cfg
}
