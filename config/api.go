package config

// APIConfig defines the embedded HTTP API serving negotiation history.
type APIConfig struct {
	Enabled bool `json:"enabled"`
	// Port for the HTTP listener.
	Port int `json:"port"`
	// Token is the bearer token required on every request. Empty disables
	// authentication.
	Token string `json:"token"`
}
