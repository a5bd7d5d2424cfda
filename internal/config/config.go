package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port           int
	LogLevel       string
	DatasetID      string
	DatasetBaseURL string
	DatasetSplit   string
	CacheDir       string
	SaveDir        string
}

func Load() Config {
	return Config{
		Port:           envInt("OFFTOPIC_PORT", 8765),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		DatasetID:      envStr("OFFTOPIC_DATASET_ID", "nvidia/CantTalkAboutThis-Topic-Control-Dataset"),
		DatasetBaseURL: envStr("OFFTOPIC_DATASET_BASE_URL", "https://datasets-server.huggingface.co"),
		DatasetSplit:   envStr("OFFTOPIC_DATASET_SPLIT", "train"),
		CacheDir:       envStr("OFFTOPIC_CACHE_DIR", "dataset_cache"),
		SaveDir:        envStr("OFFTOPIC_SAVE_DIR", "annotation_saves"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
