package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env           string              `yaml:"env" env-default:"local"`
	DSN           string              `yaml:"dsn" env:"DSN" env-required:"true"`
	HTTP          HTTPConfig          `yaml:"http"`
	FileStorage   FileStorageConfig   `yaml:"file_storage"`
	Redis         RedisConf           `yaml:"redis"`
	Gallery       GalleryConfig       `yaml:"gallery"`
	TagGeneration TagGenerationConfig `yaml:"tag_generation"`
	Transcode     TranscodeConfig     `yaml:"transcode"`
}

type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"60s"`
}

type FileStorageConfig struct {
	BaseDir string `yaml:"base_dir" env-default:"./uploads"`
	BaseURL string `yaml:"base_url" env-default:"http://localhost:8080/uploads"`
	MaxSize int64  `yaml:"max_size" env-default:"52428800"`
}

type RedisConf struct {
	RedisAddr     string        `yaml:"redis_addr" env-default:"localhost:6379"`
	RedisPassword string        `yaml:"redispassword"`
	RedisDB       int           `yaml:"redis_db"`
	TagsTTL       time.Duration `yaml:"tags_ttl" env-default:"5m"`
}

type GalleryConfig struct {
	PageSize      int `yaml:"page_size" env-default:"20"`
	FullLoadLimit int `yaml:"full_load_limit" env-default:"10000"`
}

// TagGenerationConfig настройки внешнего сервиса подсказки тегов.
// Пустой Endpoint означает, что используются только эвристики.
type TagGenerationConfig struct {
	Endpoint       string        `yaml:"endpoint" env:"TAGS_ENDPOINT"`
	APIKey         string        `yaml:"api_key" env:"TAGS_API_KEY"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env-default:"30s"`
	MaxRetries     uint64        `yaml:"max_retries" env-default:"3"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env-default:"2s"`
	CacheTTL       time.Duration `yaml:"cache_ttl" env-default:"10m"`
}

type TranscodeConfig struct {
	Enabled    bool          `yaml:"enabled"`
	FFmpegPath string        `yaml:"ffmpeg_path" env-default:"ffmpeg"`
	Timeout    time.Duration `yaml:"timeout" env-default:"60s"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
