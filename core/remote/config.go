package remote

// Config holds configuration for the remote spreadsheet API client.
type Config struct {
	// BaseURL is the root URL of the remote API.
	BaseURL string `mapstructure:"base_url" default:"http://localhost:9090"`
	// ApiKey is the bearer token presented on every request.
	ApiKey string `mapstructure:"api_key" default:""`
	// TimeoutSeconds is the per-call timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// BatchCap is the remote's hard limit on sub-operations per batched call.
	BatchCap int `mapstructure:"batch_cap" default:"100"`
}
