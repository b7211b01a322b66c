package cfg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxIdleTimeout is the hard ceiling on the idle reissue period. Providers
// are allowed to drop an idle connection after 30 minutes, and the biggest
// ones do it earlier, so a wait cycle has to end well before that.
const MaxIdleTimeout = 29 * time.Minute

const (
	DefaultFolder         = "INBOX"
	DefaultIdleTimeout    = 5 * time.Minute
	DefaultBodyLimit      = 4000
	DefaultStateFile      = "mailwatch.db"
	DefaultBackoffBase    = 5 * time.Second
	DefaultBackoffCeiling = 5 * time.Minute
)

type Config struct {
	IMAP    IMAP    `yaml:"imap"`
	MQTT    MQTT    `yaml:"mqtt"`
	Filters Filters `yaml:"filters"`
	Watch   Watch   `yaml:"watch"`
}

type IMAP struct {
	ServerURL           string `yaml:"serverURL"`
	Username            string `yaml:"username"`
	Password            string `yaml:"password"`
	AccessToken         string `yaml:"accessToken"`
	Folder              string `yaml:"folder"`
	NoTLS               bool   `yaml:"noTLS"`
	SkipTLSVerification bool   `yaml:"skipTLSVerification"`
}

type MQTT struct {
	BrokerURL           string   `yaml:"brokerURL"`
	ClientID            string   `yaml:"clientID"`
	Username            string   `yaml:"username"`
	Password            string   `yaml:"password"`
	Topic               string   `yaml:"topic"`
	QueueSize           int      `yaml:"queueSize"`
	Timeout             Duration `yaml:"timeout"`
	SkipTLSVerification bool     `yaml:"skipTLSVerification"`
}

type Filters struct {
	SubjectKeywords []string `yaml:"subjectKeywords"`
	FromContains    []string `yaml:"fromContains"`
}

type Watch struct {
	IdleTimeout     Duration `yaml:"idleTimeout"`
	BodyLimit       int      `yaml:"bodyLimit"`
	MarkSeen        bool     `yaml:"markSeen"`
	MaxAuthAttempts int      `yaml:"maxAuthAttempts"`
	BackoffBase     Duration `yaml:"backoffBase"`
	BackoffCeiling  Duration `yaml:"backoffCeiling"`
	DedupCapacity   int      `yaml:"dedupCapacity"`
	StateFile       string   `yaml:"stateFile"`
}

func newConfig() *Config {
	return &Config{}
}

// LoadFromFile loads the configuration from the file
func LoadFromFile(fileName string) (*Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	return loadConfig(file)
}

// loadConfig from a io.ReadCloser
func loadConfig(reader io.ReadCloser) (*Config, error) {
	defer reader.Close()
	decoder := yaml.NewDecoder(reader)
	config := newConfig()
	err := decoder.Decode(config)
	if err != nil {
		return nil, err
	}
	config.setDefaults()
	if err = config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) setDefaults() {
	if c.IMAP.Folder == "" {
		c.IMAP.Folder = DefaultFolder
	}
	if c.Watch.IdleTimeout <= 0 {
		c.Watch.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if c.Watch.BodyLimit <= 0 {
		c.Watch.BodyLimit = DefaultBodyLimit
	}
	if c.Watch.BackoffBase <= 0 {
		c.Watch.BackoffBase = Duration(DefaultBackoffBase)
	}
	if c.Watch.BackoffCeiling <= 0 {
		c.Watch.BackoffCeiling = Duration(DefaultBackoffCeiling)
	}
	if c.Watch.StateFile == "" {
		c.Watch.StateFile = DefaultStateFile
	}
}

func (c *Config) validate() error {
	if c.IMAP.ServerURL == "" {
		return errors.New("missing imap.serverURL")
	}
	if c.IMAP.Username == "" {
		return errors.New("missing imap.username")
	}
	if c.IMAP.Password == "" && c.IMAP.AccessToken == "" {
		return errors.New("missing imap.password or imap.accessToken")
	}
	if c.MQTT.BrokerURL == "" {
		return errors.New("missing mqtt.brokerURL")
	}
	if c.MQTT.Topic == "" {
		return errors.New("missing mqtt.topic")
	}
	if c.Watch.IdleTimeout.Value() > MaxIdleTimeout {
		return fmt.Errorf("watch.idleTimeout %s is over the %s provider limit", c.Watch.IdleTimeout.Value(), MaxIdleTimeout)
	}
	if c.Watch.BackoffCeiling < c.Watch.BackoffBase {
		return errors.New("watch.backoffCeiling is smaller than watch.backoffBase")
	}
	return nil
}
