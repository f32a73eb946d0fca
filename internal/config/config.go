package config

import (
	"os"
)

// Config 应用配置
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string
	MirrorURL string // websocket endpoint of the remote territory mirror
	Tuning    Tuning
}

// Load 加载配置
func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/territory/territory.db"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-in-production"
	}

	mirrorURL := os.Getenv("MIRROR_URL")

	tuning, err := LoadTuning(os.Getenv("TUNING_PATH"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:      port,
		DBPath:    dbPath,
		JWTSecret: jwtSecret,
		MirrorURL: mirrorURL,
		Tuning:    tuning,
	}, nil
}
