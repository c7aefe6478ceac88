package configuration

import (
	"encoding/json"
	"os"
)

type MongoConfig struct {
	Uri                     string `json:"uri"`
	Database                string `json:"database"`
	MessagesCollection      string `json:"messagesCollection"`
	ConversationsCollection string `json:"conversationsCollection"`
	UsersCollection         string `json:"usersCollection"`
	SocketRoute             string `json:"socketRoute"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port"`
	SocketPort     int      `json:"socket_port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type AuthConfig struct {
	JwtSecret               string `json:"jwt_secret"`
	HandshakeTimeoutSeconds int    `json:"handshake_timeout_seconds"`
}

type Config struct {
	Mongo  MongoConfig  `json:"mongo"`
	Server ServerConfig `json:"server"`
	Auth   AuthConfig   `json:"auth"`
}

func LoadConfig(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	err = json.Unmarshal(file, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
