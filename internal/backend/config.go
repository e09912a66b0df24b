package backend

import (
	"fmt"
	"strings"

	"expenso/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	storeType := StoreType(appConfig.SessionStore)
	if !storeType.IsValid() {
		return Config{}, fmt.Errorf("invalid session store in config: %s", appConfig.SessionStore)
	}

	return Config{
		Type:         storeType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid session store %q, want one of: %s", c.Type, strings.Join(GetStoreTypeStrings(), ", "))
	}
	if c.Type == SQLiteStore && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite session store")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}

func GetStoreTypes() []StoreType {
	return []StoreType{SQLiteStore, MemoryStore}
}

func GetStoreTypeStrings() []string {
	types := GetStoreTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
