package config

import "time"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Default values for optional configuration fields.
const (
	DefaultPort            = 8080
	DefaultEnv             = EnvDevelopment
	DefaultShutdownTimeout = 10 * time.Second
	DefaultDriver          = DriverMemory
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultTable           = "api_call"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultAuditTimeout    = 5 * time.Second
	DefaultPageSize        = 20
	DefaultTimezone        = "UTC"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Env == "" {
		c.Server.Env = DefaultEnv
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.Driver == DriverPostgres {
		if c.Database.Port == 0 {
			c.Database.Port = DefaultDBPort
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultDBSSLMode
		}
		if c.Database.MaxConns == 0 {
			c.Database.MaxConns = DefaultMaxConns
		}
		if c.Database.MinConns == 0 {
			c.Database.MinConns = DefaultMinConns
		}
	}
	if c.Database.Table == "" {
		c.Database.Table = DefaultTable
	}

	if c.Audit.WriteTimeout == 0 {
		c.Audit.WriteTimeout = DefaultAuditTimeout
	}

	if c.Dashboard.PageSize == 0 {
		c.Dashboard.PageSize = DefaultPageSize
	}
	if c.Dashboard.Timezone == "" {
		c.Dashboard.Timezone = DefaultTimezone
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
