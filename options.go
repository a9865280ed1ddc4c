package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

type options struct {
	addr               string
	port               uint16
	limit              int
	anonymize          bool
	usersPath          string
	logLevel           zerolog.Level
	logFormat          string
	keepAlive          net.KeepAliveConfig
	negotiationTimeout time.Duration
	dialTimeout        time.Duration
	reusePort          bool
}

func (o options) listenAddr() string {
	return net.JoinHostPort(o.addr, strconv.Itoa(int(o.port)))
}

// envDefaults holds flag defaults taken from KOBLAS_* variables.
type envDefaults struct {
	addr      string
	port      uint16
	limit     int
	anonymize bool
	usersPath string
	logLevel  string
}

func loadEnvDefaults(getenv func(string) string) (envDefaults, error) {
	d := envDefaults{
		addr:     "127.0.0.1",
		port:     1080,
		limit:    127,
		logLevel: "info",
	}

	if v := getenv("KOBLAS_ADDRESS"); v != "" {
		d.addr = v
	}
	if v := getenv("KOBLAS_PORT"); v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
		if err != nil {
			return d, fmt.Errorf("invalid KOBLAS_PORT: %w", err)
		}
		d.port = uint16(n)
	}
	if v := getenv("KOBLAS_LIMIT"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return d, fmt.Errorf("invalid KOBLAS_LIMIT: %w", err)
		}
		d.limit = n
	}
	if v := getenv("KOBLAS_ANONYMIZATION"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return d, fmt.Errorf("invalid KOBLAS_ANONYMIZATION: %w", err)
		}
		d.anonymize = b
	}
	if v := getenv("KOBLAS_USERS_PATH"); v != "" {
		d.usersPath = v
	}
	if v := getenv("KOBLAS_LOG_LEVEL"); v != "" {
		d.logLevel = v
	}

	return d, nil
}

func parseOptions(args []string, getenv func(string) string, output io.Writer) (options, error) {
	d, err := loadEnvDefaults(getenv)
	if err != nil {
		return options{}, err
	}

	fs := pflag.NewFlagSet("koblas", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.SortFlags = false

	var (
		addr               = fs.StringP("addr", "a", d.addr, "Address to listen on (env KOBLAS_ADDRESS)")
		port               = fs.Uint16P("port", "p", d.port, "Port to listen on (env KOBLAS_PORT)")
		limit              = fs.IntP("limit", "l", d.limit, "Maximum number of concurrent connections (env KOBLAS_LIMIT)")
		anonymize          = fs.Bool("anon", d.anonymize, "Leave client and destination addresses out of logs (env KOBLAS_ANONYMIZATION)")
		usersPath          = fs.StringP("users", "u", d.usersPath, "Path to the users file (env KOBLAS_USERS_PATH)")
		logLevel           = fs.String("log-level", d.logLevel, "Log level: trace|debug|info|warn|error (env KOBLAS_LOG_LEVEL)")
		logFormat          = fs.String("log-format", "console", "Log format: console|json")
		tcpKeepAlive       = fs.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		negotiationTimeout = fs.Duration("negotiation-timeout", 0, "Timeout for the handshake and request, 0 disables")
		dialTimeout        = fs.Duration("dial-timeout", 0, "Timeout for each outbound TCP connect, 0 disables")
		reusePort          = fs.Bool("reuse-port", false, "Set SO_REUSEPORT on the listening socket")
	)

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	o := options{
		addr:               *addr,
		port:               *port,
		limit:              *limit,
		anonymize:          *anonymize,
		usersPath:          *usersPath,
		logFormat:          strings.ToLower(*logFormat),
		negotiationTimeout: *negotiationTimeout,
		dialTimeout:        *dialTimeout,
		reusePort:          *reusePort,
	}

	if o.limit <= 0 {
		return options{}, errors.New("invalid --limit: must be > 0")
	}
	if o.negotiationTimeout < 0 {
		return options{}, errors.New("invalid --negotiation-timeout: must be >= 0")
	}
	if o.dialTimeout < 0 {
		return options{}, errors.New("invalid --dial-timeout: must be >= 0")
	}

	o.logLevel, err = zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(*logLevel)))
	if err != nil {
		return options{}, fmt.Errorf("invalid --log-level: %w", err)
	}
	if o.logFormat != "console" && o.logFormat != "json" {
		return options{}, fmt.Errorf("invalid --log-format %q: expected console|json", *logFormat)
	}

	o.keepAlive, err = parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return options{}, fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	return o, nil
}

func newLogger(o options, w io.Writer) zerolog.Logger {
	if o.logFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(o.logLevel).With().Timestamp().Logger()
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}
