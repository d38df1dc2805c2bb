package main

import (
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Storage struct {
		Path     string `yaml:"path"`
		Database string `yaml:"database"`
	} `yaml:"storage"`
	API struct {
		Port          string `yaml:"port"`
		TokenTTLHours int    `yaml:"token_ttl_hours"`
	} `yaml:"api"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	Queue struct {
		Workers     int `yaml:"workers"`
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"queue"`
}

func LoadConfig() *Config {
	config := defaultConfig()

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		log.Printf("Failed to read config file, using defaults: %v", err)
	} else if err := yaml.Unmarshal(data, config); err != nil {
		log.Printf("Failed to parse config file, using defaults: %v", err)
		config = defaultConfig()
	}

	// Environment overrides take precedence over the file
	if folderPath := os.Getenv("FOLDER_PATH"); folderPath != "" {
		config.Storage.Path = folderPath
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		config.Redis.Addr = redisAddr
	}
	if port := os.Getenv("PORT"); port != "" {
		config.API.Port = port
	}

	return config
}

func defaultConfig() *Config {
	config := &Config{}
	config.Storage.Path = "/tmp/files_manager"
	config.Storage.Database = "./filevault.db"
	config.API.Port = "5000"
	config.API.TokenTTLHours = 24
	config.Redis.Addr = "localhost:6379"
	config.Queue.Workers = 3
	config.Queue.MaxAttempts = 5
	return config
}
