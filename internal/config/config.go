package config

import (
	"fmt"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	AllowedOrigins []string
	// AllowLateVotes controls whether estimates may still be submitted
	// against a vote that has already been revealed. The historical
	// behavior is to accept them, silently overwriting prior values.
	AllowLateVotes bool
}

func NewConfig(serverAddr, databaseDSN string, allowedOrigins []string, allowLateVotes bool) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		AllowedOrigins: allowedOrigins,
		AllowLateVotes: allowLateVotes,
	}, nil
}
