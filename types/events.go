package types

// Event channel names shared with the gateway.
const (
	ChannelUserRegistered = "users.registered"
	ChannelClusterCreated = "clusters.created"
	ChannelClusterHealth  = "clusters.health"
)

// UserRegisteredEvent is published once a user row has been inserted.
type UserRegisteredEvent struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	PricingTier string `json:"pricing_tier"`
}

// ClusterCreatedEvent lets the gateway schedule a first diagnosis.
// It never carries credentials.
type ClusterCreatedEvent struct {
	ClusterID int64  `json:"cluster_id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Scheme    string `json:"scheme"`
}

// HealthReport is the result of a diagnostic run, sent by the gateway.
type HealthReport struct {
	ClusterID   int64   `json:"cluster_id"`
	ESVersion   string  `json:"es_version"`
	HealthScore float64 `json:"health_score"`
	Status      string  `json:"status"`
}
