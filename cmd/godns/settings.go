package main

import (
	"fmt"
	"strconv"

	"github.com/BurntSushi/toml"
)

var (
	settings Settings
)

var LogLevelMap = map[string]int{
	"DEBUG":  LevelDebug,
	"INFO":   LevelInfo,
	"NOTICE": LevelNotice,
	"WARN":   LevelWarn,
	"ERROR":  LevelError,
}

type Settings struct {
	Version      string
	Debug        bool
	Server       DNSServerSettings  `toml:"server"`
	ResolvConfig ResolvSettings     `toml:"resolv"`
	Redis        RedisSettings      `toml:"redis"`
	Memcache     MemcacheSettings   `toml:"memcache"`
	Postgresql   PostgresqlSettings `toml:"postgresql"`
	Log          LogSettings        `toml:"log"`
	Cache        CacheSettings      `toml:"cache"`
	Hosts        HostsSettings      `toml:"hosts"`
	Audit        AuditSettings      `toml:"audit"`
	API          APISettings        `toml:"api"`
}

type ResolvSettings struct {
	ResolvFile       string `toml:"resolv-file"`
	DomainServerFile string `toml:"domain-server-file"`
	Timeout          int
}

type DNSServerSettings struct {
	Host string
	Port int
}

type RedisSettings struct {
	Host     string
	Port     int
	DB       int
	Password string
}

func (s RedisSettings) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

type MemcacheSettings struct {
	Servers []string
}

type PostgresqlSettings struct {
	Host        string
	Port        int
	User        string
	Password    string
	DB          string
	Sslmode     string
	Sslcert     string
	Sslkey      string
	Sslrootcert string
}

type LogSettings struct {
	Stdout bool
	File   string
	Level  string
}

func (ls LogSettings) LogLevel() (int, error) {
	l, ok := LogLevelMap[ls.Level]
	if !ok {
		return 0, fmt.Errorf("config error: invalid log level: %s", ls.Level)
	}
	return l, nil
}

type CacheSettings struct {
	Backend  string
	Expire   int
	Maxcount int
	// domain -> seconds, the longest matching domain wins
	Rules map[string]int
}

type HostsSettings struct {
	Enable      bool
	HostsFile   string `toml:"host-file"`
	RedisEnable bool   `toml:"redis-enable"`
	RedisKey    string `toml:"redis-key"`
	TTL         uint32 `toml:"ttl"`
}

type AuditSettings struct {
	Enable  bool
	Backend string
	Expire  int64
	// client address prefix -> network name
	Networks map[string]string
}

type APISettings struct {
	Enable bool
	Host   string
	Port   int
}

func (s APISettings) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

func LoadSettings(configFile string) (Settings, error) {
	var s Settings
	if _, err := toml.DecodeFile(configFile, &s); err != nil {
		return s, fmt.Errorf("%s is not a valid toml config file: %w", configFile, err)
	}
	if _, err := s.Log.LogLevel(); err != nil {
		return s, err
	}
	return s, nil
}
