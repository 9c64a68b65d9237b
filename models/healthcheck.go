package models

// HealthCheckResponse returns the health check response duh
type HealthCheckResponse struct {
	Alive  bool   `json:"alive"`
	Region uint64 `json:"region,omitempty"`
}
