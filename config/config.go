package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kjk/seqfile/storage"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names env variable with path of config file
const EnvConfigPath = "SEQFILE_CONFIG"

// Config represents seqfile configuration
type Config struct {
	Minio Minio `yaml:"minio"`
	SFTP  SFTP  `yaml:"sftp"`
	HDFS  HDFS  `yaml:"hdfs"`
	HTTP  HTTP  `yaml:"http"`
	Log   Log   `yaml:"log"`
	Write Write `yaml:"write"`
}

// Minio has credentials for s3:// urls
type Minio struct {
	Access   string `yaml:"access"`
	Secret   string `yaml:"secret"`
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	Insecure bool   `yaml:"insecure"`
}

// SFTP has credentials for sftp:// urls
type SFTP struct {
	User       string `yaml:"user"`
	Addr       string `yaml:"addr"`
	Port       uint   `yaml:"port"`
	KeyPath    string `yaml:"key_path"`
	Passphrase string `yaml:"passphrase"`
	Password   string `yaml:"password"`
}

// HDFS has settings for hdfs:// urls
type HDFS struct {
	Namenode string `yaml:"namenode"`
	User     string `yaml:"user"`
}

// HTTP has settings for http:// and https:// urls
type HTTP struct {
	APIKey string `yaml:"api_key"`
}

// Log contains logging configuration
type Log struct {
	// if set, logs are also written to daily files in this directory
	Dir     string `yaml:"dir"`
	Verbose bool   `yaml:"verbose"`
}

// Write has defaults for the write command
type Write struct {
	Copies   int `yaml:"copies"`
	Parallel int `yaml:"parallel"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Write: Write{
			Copies:   1,
			Parallel: 4,
		},
	}
}

// Load loads configuration from path. Values not in the file have defaults.
// If path is empty, $SEQFILE_CONFIG is used. If that is not set either,
// defaults are returned.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// secrets are better kept out of config files
func (c *Config) applyEnv() {
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Minio.Access = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.Secret = v
	}
}

// Validate checks that values are in range
func (c *Config) Validate() error {
	if c.Write.Copies < 1 {
		return errors.New("write.copies must be at least 1")
	}
	if c.Write.Parallel < 1 {
		return errors.New("write.parallel must be at least 1")
	}
	if c.SFTP.Port > 65535 {
		return fmt.Errorf("sftp.port %d is out of range", c.SFTP.Port)
	}
	return nil
}

// StorageOptions returns settings for storage.FromURL
func (c *Config) StorageOptions() *storage.Options {
	return &storage.Options{
		Minio: &storage.MinioConfig{
			Access:   c.Minio.Access,
			Secret:   c.Minio.Secret,
			Bucket:   c.Minio.Bucket,
			Endpoint: c.Minio.Endpoint,
			Region:   c.Minio.Region,
			Insecure: c.Minio.Insecure,
		},
		SFTP: &storage.SFTPConfig{
			User:       c.SFTP.User,
			Addr:       c.SFTP.Addr,
			Port:       c.SFTP.Port,
			KeyPath:    c.SFTP.KeyPath,
			Passphrase: c.SFTP.Passphrase,
			Password:   c.SFTP.Password,
		},
		HDFS: &storage.HDFSConfig{
			Namenode: c.HDFS.Namenode,
			User:     c.HDFS.User,
		},
		HTTP: &storage.HTTPConfig{
			APIKey: c.HTTP.APIKey,
		},
	}
}
