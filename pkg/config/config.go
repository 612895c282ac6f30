package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	Environment     string

	// StrictRecruitmentFlow enforces the recruitment transition graph
	// (discussing -> offer_sent -> accepted|declined -> completed) instead
	// of allowing any participant to set any status.
	StrictRecruitmentFlow bool
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		FirebaseProject:       getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:           getEnv("ENVIRONMENT", "development"),
		StrictRecruitmentFlow: getEnvAsBool("STRICT_RECRUITMENT_FLOW", false),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}
