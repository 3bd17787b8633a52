// Package config 加载服务配置
// Configuration is layered: built-in defaults, an optional config.yaml, a .env file
// and finally FILEVAULT_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/weiwangfds/filevault/internal/errors"
	"github.com/weiwangfds/filevault/internal/logger"
)

// EnvPrefix is prepended to every environment override, e.g. FILEVAULT_DATABASE_URI.
const EnvPrefix = "FILEVAULT"

// Config 服务完整配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      logger.Config  `mapstructure:"log"`
}

// AppConfig holds values that shape API responses.
type AppConfig struct {
	// Domain is the public base URL used to build download links.
	Domain string `mapstructure:"domain"`
}

// ServerConfig HTTP服务器配置
// Timeouts are in seconds; zero disables the timeout so that multi-hour
// uploads and downloads are never cut off by the server.
type ServerConfig struct {
	Port              int    `mapstructure:"port"`
	HTTPSPort         int    `mapstructure:"https_port"`
	EnableHTTPS       bool   `mapstructure:"enable_https"`
	EnableHTTP2       bool   `mapstructure:"enable_http2"`
	TLSCertFile       string `mapstructure:"tls_cert_file"`
	TLSKeyFile        string `mapstructure:"tls_key_file"`
	ReadTimeout       int    `mapstructure:"read_timeout"`
	ReadHeaderTimeout int    `mapstructure:"read_header_timeout"`
	WriteTimeout      int    `mapstructure:"write_timeout"`
	IdleTimeout       int    `mapstructure:"idle_timeout"`
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout"`
	Mode              string `mapstructure:"mode"`
}

// DatabaseConfig 元数据存储配置
type DatabaseConfig struct {
	// Driver selects the metadata backend: mongodb, sqlite or postgres.
	Driver string `mapstructure:"driver"`
	// URI is the MongoDB connection string.
	URI string `mapstructure:"uri"`
	// Name is the MongoDB database name.
	Name string `mapstructure:"name"`
	// DSN is used by the SQL drivers.
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  int    `mapstructure:"connect_timeout"`
	LogQueries      bool   `mapstructure:"log_queries"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	// Provider selects the object store adapter: s3, aliyun, tencent or qiniu.
	Provider  string `mapstructure:"provider"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PathStyle bool   `mapstructure:"path_style"`
}

// UploadConfig 上传配置
type UploadConfig struct {
	// TempDir is where incoming uploads are staged before processing.
	TempDir string `mapstructure:"temp_dir"`
	// MaxSize caps the multipart body in bytes; zero means unbounded.
	MaxSize int64 `mapstructure:"max_size"`
	// MultipartMemory is how much of a multipart body gin keeps in memory
	// before spilling to disk.
	MultipartMemory int64 `mapstructure:"multipart_memory"`
}

// Load 加载配置
// Parameters:
//   - paths: optional explicit config files; when empty the default search
//     locations are used.
func Load(paths ...string) (*Config, error) {
	// A missing .env is the normal production case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(paths) > 0 && paths[0] != "" {
		v.SetConfigFile(paths[0])
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/filevault")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asConfigNotFound(err, &notFound) {
			return nil, errors.Wrap(errors.KindParse, errors.CodeParseConfig, "failed to read config file", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.KindParse, errors.CodeParseConfig, "failed to decode config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if nf, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = nf
		return true
	}
	// SetConfigFile with a missing path surfaces as an os error instead.
	return os.IsNotExist(err)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.domain", "http://localhost:8080")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.https_port", 8443)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.read_timeout", 0)
	v.SetDefault("server.read_header_timeout", 30)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.idle_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 30)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "mongodb")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "filevault")
	v.SetDefault("database.dsn", "filevault.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.connect_timeout", 10)
	v.SetDefault("database.log_queries", false)

	v.SetDefault("storage.provider", "s3")
	v.SetDefault("storage.endpoint", "http://localhost:9000")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "filevault")
	v.SetDefault("storage.access_key", "minioadmin")
	v.SetDefault("storage.secret_key", "minioadmin")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.path_style", true)

	v.SetDefault("upload.temp_dir", os.TempDir())
	v.SetDefault("upload.max_size", 0)
	v.SetDefault("upload.multipart_memory", 10<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/filevault.log")
}

// Validate checks values that would otherwise fail late at connection time.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mongodb":
		u, err := url.Parse(c.Database.URI)
		if err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			return errors.Wrap(errors.KindParse, errors.CodeParseURI,
				fmt.Sprintf("invalid metadata store uri %q", c.Database.URI), err)
		}
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return errors.New(errors.KindParse, errors.CodeParseURI, "database dsn must not be empty")
		}
	default:
		return errors.New(errors.KindParse, errors.CodeParseConfig,
			fmt.Sprintf("unsupported database driver: %s", c.Database.Driver))
	}

	if strings.Contains(c.Storage.Endpoint, "://") {
		u, err := url.Parse(c.Storage.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Wrap(errors.KindParse, errors.CodeParseURL,
				fmt.Sprintf("invalid object store endpoint %q", c.Storage.Endpoint), err)
		}
	}
	if c.Storage.Bucket == "" {
		return errors.New(errors.KindParse, errors.CodeParseConfig, "storage bucket must not be empty")
	}

	u, err := url.Parse(c.App.Domain)
	if err != nil || u.Scheme == "" {
		return errors.Wrap(errors.KindParse, errors.CodeParseURL,
			fmt.Sprintf("invalid public domain %q", c.App.Domain), err)
	}
	c.App.Domain = strings.TrimRight(c.App.Domain, "/")
	return nil
}

// Seconds converts a timeout setting into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
