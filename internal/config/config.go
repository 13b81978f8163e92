package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultListenAddr = ":3000"
	DefaultIssuer     = "authedge"
)

type MySQLConfig struct {
	Dsn         string `mapstructure:"dsn"`
	TablePrefix string `mapstructure:"tablePrefix"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	CAFile   string `mapstructure:"caFile"`
}

type MailConfig struct {
	Backend string     `mapstructure:"backend"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type GatewayConfig struct {
	// Routes maps gateway service names to backend base URLs.
	Routes         map[string]string `mapstructure:"routes"`
	PublicPrefixes []string          `mapstructure:"publicPrefixes"`
}

type OAuthProviderConfig struct {
	ClientID     string `mapstructure:"clientID"`
	ClientSecret string `mapstructure:"clientSecret"`
}

type EventBusConfig struct {
	// Channel is the bus channel security events are published to.
	// Leave empty to log and drop events instead.
	Channel string `mapstructure:"channel"`
}

type Config struct {
	Debug         bool           `mapstructure:"debug"`
	SiteName      string         `mapstructure:"siteName"`
	BaseURL       string         `mapstructure:"baseURL"`
	Issuer        string         `mapstructure:"issuer"`
	MasterKey     string         `mapstructure:"masterKey"`
	AdminKey      string         `mapstructure:"adminKey"`
	ListenAddr    string         `mapstructure:"listenAddr"`
	AllowOrigins  []string       `mapstructure:"allowOrigins"`
	Redis         RedisConfig    `mapstructure:"redis"`
	MySQL         MySQLConfig    `mapstructure:"mysql"`
	Mail          MailConfig     `mapstructure:"mail"`
	Gateway       GatewayConfig  `mapstructure:"gateway"`
	EventBus      EventBusConfig `mapstructure:"eventBus"`
	AuthProviders struct {
		OAuth map[string]OAuthProviderConfig `mapstructure:"oauth"`
	} `mapstructure:"authProviders"`
}

func (c *Config) Sanitize() error {
	if c.MasterKey == "" {
		return errors.New("masterKey must be set")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Issuer == "" {
		if c.BaseURL != "" {
			c.Issuer = c.BaseURL
		} else {
			c.Issuer = DefaultIssuer
		}
	}
	if len(c.Gateway.PublicPrefixes) == 0 {
		c.Gateway.PublicPrefixes = []string{"/auth", "/oauth", "/sso", "/static"}
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
