package config

// Default paths and endpoints
const (
	// DefaultDatabasePath is the default path for the offline content database
	DefaultDatabasePath = "./bijbellezer.db"

	// DefaultRemoteBaseURL is the default base URL of the remote Bible source
	DefaultRemoteBaseURL = "https://api.bijbelquiz.app/v1"

	// DefaultPort is the port the local API listens on
	DefaultPort = 7777
)
