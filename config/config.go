package config

import (
	"github.com/golang/glog"

	"github.com/microcosm-cc/goconfig"
)

// ConfigFilePath is the path to the config file
const ConfigFilePath string = "/etc/appstore/api.conf"

// APISection is the [api] section of the config file
const APISection string = "api"

// Config file keys
const (
	Environment = "environment"

	DatabaseHost     = "database_host"
	DatabasePort     = "database_port"
	DatabaseName     = "database_database"
	DatabaseUsername = "database_username"
	DatabasePassword = "database_password"

	ListenPort = "listen_port"

	MemcachedHost = "memcached_host"
	MemcachedPort = "memcached_port"

	RedisHost = "redis_host"
	RedisPort = "redis_port"

	// NoCache disables the cache mirror entirely: reads are recomputed from
	// the database on every request and no rebuild jobs are scheduled. Only
	// intended for deterministic testing and local development. This is an
	// explicit config flag, never inferred from process arguments.
	NoCache = "nocache"
)

var configRequiredStrings = []string{
	DatabaseHost,
	DatabaseName,
	DatabasePassword,
	DatabaseUsername,
	Environment,
	MemcachedHost,
	RedisHost,
}

var configRequiredInt64s = []string{
	DatabasePort,
	ListenPort,
	MemcachedPort,
	RedisPort,
}

var configRequiredBools = []string{
	NoCache,
}

// ConfigStrings contains the string values for the given config keys
var ConfigStrings = map[string]string{}

// ConfigInt64s contains the int64 values for the given config keys
var ConfigInt64s = map[string]int64{}

// ConfigBool contains the bool values for the given config keys
var ConfigBool = map[string]bool{}

func init() {
	c, err := goconfig.ReadConfigFile(ConfigFilePath)
	if err != nil {
		glog.Fatal(err)
	}

	for _, key := range configRequiredStrings {
		s, err := c.GetString(APISection, key)
		if err != nil {
			glog.Fatal(err)
		}
		ConfigStrings[key] = s
	}

	for _, key := range configRequiredInt64s {
		ii, err := c.GetInt64(APISection, key)
		if err != nil {
			glog.Fatal(err)
		}
		ConfigInt64s[key] = ii
	}

	for _, key := range configRequiredBools {
		b, err := c.GetBool(APISection, key)
		if err != nil {
			glog.Fatal(err)
		}
		ConfigBool[key] = b
	}
}
