/*
MIT License

Copyright (c) 2023 Frank Oh

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package echo_record_cache

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Store kinds understood by FileConfig.
const (
	StoreMemory       = "memory"
	StoreRedis        = "redis"
	StoreRedisCluster = "redis-cluster"
	StoreBolt         = "bolt"
)

type (
	// FileConfig is the YAML layout of the example server's config file.
	FileConfig struct {
		Policy        string        `yaml:"policy"`
		Addr          string        `yaml:"addr"`
		Store         StoreConfig   `yaml:"store"`
		FlushInterval time.Duration `yaml:"flush_interval"`
		DrainTimeout  time.Duration `yaml:"drain_timeout"`
		StoreTimeout  time.Duration `yaml:"store_timeout"`
		LogLevel      string        `yaml:"log_level"`
	}

	// StoreConfig selects and addresses the backing store.
	StoreConfig struct {
		Kind       string   `yaml:"kind"`
		RedisAddr  string   `yaml:"redis_addr"`
		RedisAddrs []string `yaml:"redis_addrs"`
		BoltPath   string   `yaml:"bolt_path"`

		// Latency is added to memory store calls.
		Latency time.Duration `yaml:"latency"`
	}
)

// DefaultFileConfig provides default configuration values for FileConfig
var DefaultFileConfig = FileConfig{
	Policy: string(DefaultConfig.Policy),
	Addr:   ":8080",
	Store: StoreConfig{
		Kind:      StoreMemory,
		RedisAddr: "localhost:6379",
		BoltPath:  "records.db",
	},
	FlushInterval: DefaultConfig.FlushInterval,
	DrainTimeout:  DefaultConfig.DrainTimeout,
	StoreTimeout:  DefaultConfig.StoreTimeout,
	LogLevel:      "info",
}

// LoadConfig reads a YAML file on top of DefaultFileConfig. An empty path
// returns the defaults.
func LoadConfig(path string) (FileConfig, error) {
	config := DefaultFileConfig
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "parse config %s", path)
	}
	if err := config.Validate(); err != nil {
		return config, errors.Wrapf(err, "config %s", path)
	}
	return config, nil
}

// Validate checks the policy and store kind.
func (c FileConfig) Validate() error {
	if _, err := ParsePolicy(c.Policy); err != nil {
		return err
	}
	switch c.Store.Kind {
	case StoreMemory, StoreRedis, StoreRedisCluster, StoreBolt:
	default:
		return invalidInput("unknown store kind %q", c.Store.Kind)
	}
	return nil
}

// EngineConfig converts the file settings into an engine Config.
func (c FileConfig) EngineConfig(logger Logger) (Config, error) {
	policy, err := ParsePolicy(c.Policy)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Policy:        policy,
		FlushInterval: c.FlushInterval,
		DrainTimeout:  c.DrainTimeout,
		StoreTimeout:  c.StoreTimeout,
		Logger:        logger,
	}, nil
}
