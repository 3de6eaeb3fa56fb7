package storage

import "os"

// DynamoMode represents the DynamoDB connection mode
type DynamoMode string

const (
	DynamoModeLocal DynamoMode = "local"
	DynamoModeAWS   DynamoMode = "aws"
	DynamoModeNone  DynamoMode = "none"
)

// DynamoConfig holds DynamoDB configuration
type DynamoConfig struct {
	Mode             DynamoMode
	Endpoint         string // for local mode
	Region           string
	TurnMetricsTable string
	CallRecordsTable string
	MenuItemsTable   string
}

// LoadDynamoConfig loads DynamoDB config from environment
func LoadDynamoConfig() DynamoConfig {
	mode := DynamoMode(getEnv("DYNAMO_MODE", "none"))
	if mode != DynamoModeLocal && mode != DynamoModeAWS {
		mode = DynamoModeNone
	}

	return DynamoConfig{
		Mode:             mode,
		Endpoint:         getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
		Region:           getEnv("DYNAMO_REGION", "ap-southeast-2"),
		TurnMetricsTable: getEnv("DYNAMO_TURN_METRICS_TABLE", "voicemetrics-turn-metrics"),
		CallRecordsTable: getEnv("DYNAMO_CALL_RECORDS_TABLE", "voicemetrics-call-records"),
		MenuItemsTable:   getEnv("DYNAMO_MENU_ITEMS_TABLE", "voicemetrics-menu-items"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
