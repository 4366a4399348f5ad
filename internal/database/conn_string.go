package database

import (
	"net"
	"net/url"
	"strconv"

	"air-server/internal/config"
)

// ApplicationName tags audit log sessions in pg_stat_activity.
const ApplicationName = "air-server"

// connURL assembles the postgres URL for cfg. Query parameters are encoded in
// key order, so application_name precedes sslmode.
func connURL(cfg config.DBConfig) *url.URL {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}
	port := cfg.Port
	if port == 0 {
		port = config.DefaultDBPort
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)

	u := &url.URL{
		Scheme:   config.DriverPostgres,
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u
}

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	return connURL(cfg).String()
}

// RedactedConnString is BuildConnString with the password masked, for logs.
func RedactedConnString(cfg config.DBConfig) string {
	return connURL(cfg).Redacted()
}
