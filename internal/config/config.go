package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Host      string
	BasePort  int
	PortRange int
	Roots     []string

	DefaultTimeoutMinutes float64
	ReadyTimeoutMS        int
	MaxBodyBytes          int64

	DBPath string
	WebDir string
}

func Load() Config {
	loadDotEnv(".env")
	return Config{
		Host:      getEnv("BRIDGE_HOST", "127.0.0.1"),
		BasePort:  getEnvInt("BRIDGE_BASE_PORT", 8990),
		PortRange: getEnvInt("BRIDGE_PORT_RANGE", 64),
		Roots:     splitRoots(getEnv("BRIDGE_ROOTS", ".")),

		DefaultTimeoutMinutes: getEnvFloat("BRIDGE_DEFAULT_TIMEOUT_MINUTES", 0),
		ReadyTimeoutMS:        getEnvInt("BRIDGE_READY_TIMEOUT_MS", 10000),
		MaxBodyBytes:          int64(getEnvInt("BRIDGE_MAX_BODY_BYTES", 1<<20)),

		DBPath: getEnv("BRIDGE_DB_PATH", ""),
		WebDir: getEnv("BRIDGE_WEB_DIR", "web"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitRoots(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		out = []string{"."}
	}
	return out
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
