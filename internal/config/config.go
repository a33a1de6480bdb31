package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-yaml/yaml"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

const (
	TransportLocal = "local"
	TransportREST  = "rest"
	TransportEVM   = "evm"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
	Registry Registry `yaml:"registry"`
	Chain    Chain    `yaml:"chain"`
	Fallback Fallback `yaml:"fallback"`
}

type NodeInfo struct {
	Name       string `yaml:"name" env:"FACTGUARD_NAME"`
	Publisher  string `yaml:"publisher" env:"FACTGUARD_PUBLISHER"`
	PrivateKey string `yaml:"privatekey" env:"FACTGUARD_PRIVATE_KEY"`

	// ---
	Identity factguard.Identity `yaml:"-"`
}

type Server struct {
	Listen        string `yaml:"listen" env:"FACTGUARD_LISTEN"`
	PostgresDsn   string `yaml:"postgresDsn" env:"FACTGUARD_POSTGRES_DSN"`
	RedisAddr     string `yaml:"redisAddr" env:"FACTGUARD_REDIS_ADDR"`
	RedisDB       int    `yaml:"redisDB" env:"FACTGUARD_REDIS_DB"`
	MemcachedAddr string `yaml:"memcachedAddr" env:"FACTGUARD_MEMCACHED_ADDR"`
	EnableTrace   bool   `yaml:"enableTrace" env:"FACTGUARD_ENABLE_TRACE"`
	TraceEndpoint string `yaml:"traceEndpoint" env:"FACTGUARD_TRACE_ENDPOINT"`
}

type Registry struct {
	Transport         string        `yaml:"transport" env:"FACTGUARD_TRANSPORT"` // local, rest, evm
	Endpoint          string        `yaml:"endpoint" env:"FACTGUARD_ENDPOINT"`
	ClockSkew         time.Duration `yaml:"clockSkew" env:"FACTGUARD_CLOCK_SKEW"`
	CommandTTL        time.Duration `yaml:"commandTTL" env:"FACTGUARD_COMMAND_TTL"`
	// CacheTTL bounds how long hash lookups of superseded or withdrawn facts are reused.
	// Active entries are never cached.
	CacheTTL          time.Duration `yaml:"cacheTTL" env:"FACTGUARD_CACHE_TTL"`
	VerifyConcurrency int           `yaml:"verifyConcurrency" env:"FACTGUARD_VERIFY_CONCURRENCY"`
}

type Chain struct {
	RPCURL         string        `yaml:"rpcURL" env:"FACTGUARD_CHAIN_RPC_URL"`
	ChainID        uint64        `yaml:"chainID" env:"FACTGUARD_CHAIN_ID"`
	Contract       string        `yaml:"contract" env:"FACTGUARD_CHAIN_CONTRACT"`
	ConfirmTimeout time.Duration `yaml:"confirmTimeout" env:"FACTGUARD_CHAIN_CONFIRM_TIMEOUT"`
}

type Fallback struct {
	Provider string `yaml:"provider" env:"FACTGUARD_FALLBACK_PROVIDER"` // openai or empty
	Model    string `yaml:"model" env:"FACTGUARD_FALLBACK_MODEL"`
	APIKey   string `yaml:"apiKey" env:"OPENAI_API_KEY"`
	BaseURL  string `yaml:"baseURL" env:"FACTGUARD_FALLBACK_BASE_URL"`
}

func Default() Config {
	return Config{
		NodeInfo: NodeInfo{
			Name: "factguard",
		},
		Server: Server{
			Listen: ":8000",
		},
		Registry: Registry{
			Transport:         TransportLocal,
			ClockSkew:         5 * time.Minute,
			CommandTTL:        5 * time.Minute,
			CacheTTL:          30 * time.Second,
			VerifyConcurrency: 8,
		},
		Chain: Chain{
			ConfirmTimeout: 2 * time.Minute,
		},
		Fallback: Fallback{
			Model: "gpt-4o-mini",
		},
	}
}

// Load reads path on top of Default and applies environment overrides.
// An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer file.Close()

		err = yaml.NewDecoder(file).Decode(&config)
		if err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}

	if config.NodeInfo.PrivateKey != "" {
		_, identity, err := factguard.LoadPrivateKey(config.NodeInfo.PrivateKey)
		if err != nil {
			return Config{}, err
		}
		config.NodeInfo.Identity = identity
	}

	return config, nil
}

func (c Config) validate() error {
	switch c.Registry.Transport {
	case TransportLocal:
	case TransportREST:
		if c.Registry.Endpoint == "" {
			return fmt.Errorf("registry.endpoint is required for the rest transport")
		}
	case TransportEVM:
		if c.Chain.RPCURL == "" || c.Chain.Contract == "" {
			return fmt.Errorf("chain.rpcURL and chain.contract are required for the evm transport")
		}
	default:
		return fmt.Errorf("unknown registry transport %q", c.Registry.Transport)
	}
	return nil
}

// Describe returns the node description served on the well-known endpoint.
func (c Config) Describe() domain.Config {
	return domain.Config{
		Name:      c.NodeInfo.Name,
		Publisher: c.NodeInfo.Publisher,
		Transport: c.Registry.Transport,
		ChainID:   c.Chain.ChainID,
		Contract:  c.Chain.Contract,
	}
}
