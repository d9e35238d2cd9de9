// Package config carga la configuración del broker desde YAML con overrides
// por variables de entorno. Los secretos (connection string, client secret)
// normalmente llegan por env, no por archivo.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// fs | pg
		Driver string `yaml:"driver"`
		FS     struct {
			Path string `yaml:"path"`
		} `yaml:"fs"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Provider struct {
		// ConnectionString del servicio de identidad:
		// "endpoint=https://...;accesskey=..."
		ConnectionString string `yaml:"connection_string"`

		// TokenScopes son las capacidades de los tokens emitidos.
		TokenScopes []string `yaml:"token_scopes"`
	} `yaml:"provider"`

	Federation struct {
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		TenantID     string   `yaml:"tenant_id"`
		RedirectURI  string   `yaml:"redirect_uri"`
		Scopes       []string `yaml:"scopes"`
		SessionTTL   string   `yaml:"session_ttl"`
	} `yaml:"federation"`
}

// Load lee el YAML (si path no está vacío), aplica overrides de entorno y
// defaults sanos.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// ─── Overrides de entorno ───
	envStr(&c.App.Env, "APP_ENV")
	envStr(&c.Server.Addr, "SERVER_ADDR")
	envStr(&c.Log.Level, "LOG_LEVEL")
	envStr(&c.Storage.Driver, "STORAGE_DRIVER")
	envStr(&c.Storage.FS.Path, "STORAGE_FS_PATH")
	envStr(&c.Storage.Postgres.DSN, "STORAGE_PG_DSN")
	envStr(&c.Cache.Kind, "CACHE_KIND")
	envStr(&c.Cache.Redis.Addr, "CACHE_REDIS_ADDR")
	envStr(&c.Provider.ConnectionString, "PROVIDER_CONNECTION_STRING")
	envStr(&c.Federation.ClientID, "FEDERATION_CLIENT_ID")
	envStr(&c.Federation.ClientSecret, "FEDERATION_CLIENT_SECRET")
	envStr(&c.Federation.TenantID, "FEDERATION_TENANT_ID")
	envStr(&c.Federation.RedirectURI, "FEDERATION_REDIRECT_URI")
	if v := os.Getenv("FEDERATION_SCOPES"); v != "" {
		c.Federation.Scopes = strings.Fields(v)
	}
	// PORT es lo que exponen la mayoría de los PaaS
	if v := os.Getenv("PORT"); v != "" && os.Getenv("SERVER_ADDR") == "" {
		c.Server.Addr = ":" + v
	}

	// ─── Defaults sanos ───
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "fs"
	}
	if c.Storage.FS.Path == "" {
		c.Storage.FS.Path = "db.json"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if len(c.Provider.TokenScopes) == 0 {
		c.Provider.TokenScopes = []string{"voip"}
	}
	if len(c.Federation.Scopes) == 0 {
		c.Federation.Scopes = []string{"https://auth.msft.communication.azure.com/Teams.ManageCalls"}
	}
	if c.Federation.SessionTTL == "" {
		c.Federation.SessionTTL = "10m"
	}

	return &c, nil
}

// Validate chequea lo mínimo para poder arrancar.
func (c *Config) Validate() error {
	if c.Provider.ConnectionString == "" {
		return fmt.Errorf("config: provider.connection_string es requerido (env PROVIDER_CONNECTION_STRING)")
	}
	if c.Storage.Driver == "pg" && c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("config: storage.postgres.dsn es requerido con driver pg")
	}
	return nil
}

// SessionTTL parsea el TTL del session store de federación.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Federation.SessionTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// MemoryTTL parsea el TTL default del cache en memoria.
func (c *Config) MemoryTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.Memory.DefaultTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
