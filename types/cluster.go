package types

import "time"

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"

	DefaultClusterPort = 9200
)

// Cluster is a saved Elasticsearch connection descriptor owned by a user.
// Credentials are only carried on the way in; the store seals them and
// never hydrates them back into this struct.
type Cluster struct {
	ID     int64  `json:"id" db:"id"`
	UserID int64  `json:"-" db:"user_id"`
	Name   string `json:"name" db:"name"`
	Host   string `json:"host" db:"host"`
	Port   int    `json:"port" db:"port"`
	Scheme string `json:"scheme" db:"scheme"`

	// Username is the basic-auth user. It is not a secret and is returned.
	Username *string `json:"username" db:"username"`

	// Password and APIKey are write-only.
	Password *string `json:"-" db:"-"`
	APIKey   *string `json:"-" db:"-"`

	VerifyCerts bool    `json:"verify_certs" db:"verify_certs"`
	CACertPath  *string `json:"ca_cert_path,omitempty" db:"ca_cert_path"`

	// ESVersion, LastHealthScore and LastStatus are written by diagnostic
	// runs reported back from the gateway.
	ESVersion       *string  `json:"es_version" db:"es_version"`
	LastHealthScore *float64 `json:"last_health_score" db:"last_health_score"`
	LastStatus      *string  `json:"last_status" db:"last_status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
