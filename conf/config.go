package conf

/*
   This package wraps viper, a package designed to handle configuration
   files, for the claims app. A local env file is used when present (dev and
   test); otherwise every lookup falls through to the process environment.

   Assumptions:
   1. The configuration file is an env file
   2. The configuration file, once made available to the application,
   stays immutable during the uptime of the application (exception is test)
*/

import (
	"os"
	"strconv"
	"testing"

	"github.com/spf13/viper"
)

// An instance of the viper struct containing the conf information. Only made
// accessible through public functions GetEnv, SetEnv, etc.
var envVars viper.Viper

const (
	configgood    uint8 = 0
	configbad     uint8 = 1
	noconfigfound uint8 = 2
)

var state uint8 = configgood

// setup is called once during initialization of the package.
func setup(dir string) *viper.Viper {
	var v = viper.New()
	v.SetConfigName("local")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	// Viper is lazy, do the read and parse of the config file now
	if err := v.ReadInConfig(); err != nil {
		state = configbad
	}

	return v
}

func init() {
	// Possible config file locations, checked in order.
	var locations = []string{
		"./shared_files",
		"../shared_files",
	}

	if success, loc := findEnv(locations); success {
		envVars = *setup(loc)
	} else {
		state = noconfigfound
	}
}

// findEnv walks the candidate locations and reports the first one holding a
// local.env file. If none is found, the app runs off environment variables.
func findEnv(locations []string) (bool, string) {
	if len(locations) == 0 {
		return false, ""
	}

	if _, err := os.Stat(locations[0] + "/local.env"); err == nil {
		return true, locations[0]
	}

	return findEnv(locations[1:])
}

// GetEnv retrieves the value stored in conf. If it does not exist, the
// process environment is consulted; "" is returned when neither has the key.
func GetEnv(key string) string {
	if state == configgood {
		var value = envVars.GetString(key)

		// Even if the config file loaded, a key missing from conf may still
		// be present in the environment.
		if value == "" {
			value = os.Getenv(key)
		}

		return value
	}

	return os.Getenv(key)
}

// LookupEnv augments os.LookupEnv to look in the viper struct first.
func LookupEnv(key string) (string, bool) {
	if state == configgood {
		if value := envVars.Get(key); value != nil && value != "" {
			return value.(string), true
		}
	}

	return os.LookupEnv(key)
}

// GetEnvInt retrieves an integer value from conf, falling back to defaultVal
// when the key is unset or unparseable.
func GetEnvInt(key string, defaultVal int) int {
	if v := GetEnv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// SetEnv adds key values into conf. This function should only be used either
// in this package itself or testing. The protect parameter is *testing.T to
// ensure developers knowingly use it in the appropriate scope.
func SetEnv(protect *testing.T, key string, value string) error {
	var err error

	if state == configgood {
		envVars.Set(key, value)
	} else {
		err = os.Setenv(key, value)
	}

	return err
}

// UnsetEnv "unsets" a variable. Like SetEnv, this should only be used either
// in this package itself or testing.
func UnsetEnv(protect *testing.T, key string) error {
	if state == configgood {
		envVars.Set(key, "")
	}

	return os.Unsetenv(key)
}
