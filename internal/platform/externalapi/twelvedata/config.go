// Package twelvedata provides a client for the Twelve Data market data API.
package twelvedata

import (
	"time"
)

const DefaultBaseURL = "https://api.twelvedata.com"

// Config holds configuration for the Twelve Data API client.
type Config struct {
	APIKey  string        // API key for authentication
	BaseURL string        // Base URL for the API (e.g., "https://api.twelvedata.com")
	Timeout time.Duration // HTTP request timeout
}
