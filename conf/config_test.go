package conf

import (
	"os"
	"testing"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"Single value", "TEST_HELLO", "world"},
		{"Multi-value separated by commas", "TEST_LIST", "One,Two,Three,Four"},
		{"Path", "TEST_SOMEPATH", "../../FAKE/PATH"},
		{"Number", "TEST_NUM", "1234"},
		{"Boolean", "TEST_BOOL", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := SetEnv(t, tt.key, tt.value); err != nil {
				t.Fatal(err)
			}
			defer func() {
				if err := UnsetEnv(t, tt.key); err != nil {
					t.Fatal(err)
				}
			}()

			if got := GetEnv(tt.key); got != tt.value {
				t.Errorf("GetEnv() = %v, want %v", got, tt.value)
			}
		})
	}
}

func TestGetEnvFallsBackToEnvironment(t *testing.T) {
	const key = "TEST_ONLY_IN_ENVIRONMENT"

	if err := os.Setenv(key, "from-the-env"); err != nil {
		t.Fatal(err)
	}
	defer os.Unsetenv(key)

	if got := GetEnv(key); got != "from-the-env" {
		t.Errorf("GetEnv() = %v, want from-the-env", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		defaultVal int
		want       int
	}{
		{"Parseable", "25", 10, 25},
		{"Unset", "", 10, 10},
		{"Unparseable", "not-a-number", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "TEST_GET_ENV_INT"
			if tt.value != "" {
				if err := SetEnv(t, key, tt.value); err != nil {
					t.Fatal(err)
				}
				defer func() {
					if err := UnsetEnv(t, key); err != nil {
						t.Fatal(err)
					}
				}()
			}

			if got := GetEnvInt(key, tt.defaultVal); got != tt.want {
				t.Errorf("GetEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLookupEnv(t *testing.T) {
	const key = "TEST_LOOKUP"

	if _, found := LookupEnv(key); found {
		t.Errorf("LookupEnv() found %s before it was set", key)
	}

	if err := os.Setenv(key, "present"); err != nil {
		t.Fatal(err)
	}
	defer os.Unsetenv(key)

	value, found := LookupEnv(key)
	if !found || value != "present" {
		t.Errorf("LookupEnv() = %v, %v; want present, true", value, found)
	}
}
