// Package tier maps pricing tiers to entitlement limits. It performs no I/O
// and is the only place tier names are compared.
package tier

import "strings"

const (
	Developer    = "developer"
	Professional = "professional"
	Enterprise   = "enterprise"

	// Default is assigned when a registration does not request a tier.
	Default = Developer
)

// Policy holds the numeric entitlements of a tier.
type Policy struct {
	Name               string `json:"name"`
	ActiveClusterLimit int    `json:"active_cluster_limit"`
	MaxNodesPerCluster int    `json:"max_nodes_per_cluster"`
	DiagnosesPerDay    int    `json:"diagnoses_per_day"`
	RetentionDays      int    `json:"retention_days"`
}

var policies = map[string]Policy{
	Developer: {
		Name:               Developer,
		ActiveClusterLimit: 2,
		MaxNodesPerCluster: 10,
		DiagnosesPerDay:    10,
		RetentionDays:      7,
	},
	Professional: {
		Name:               Professional,
		ActiveClusterLimit: 10,
		MaxNodesPerCluster: 100,
		DiagnosesPerDay:    100,
		RetentionDays:      30,
	},
	Enterprise: {
		Name:               Enterprise,
		ActiveClusterLimit: 100,
		MaxNodesPerCluster: 1000,
		DiagnosesPerDay:    1000,
		RetentionDays:      365,
	},
}

// Normalize lowercases and trims a tier name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Valid reports whether name is a known tier.
func Valid(name string) bool {
	_, ok := policies[Normalize(name)]
	return ok
}

// Names returns the known tiers from lowest to highest.
func Names() []string {
	return []string{Developer, Professional, Enterprise}
}

// Config returns the policy for name, falling back to the developer policy
// for unknown names. It never falls back upward.
func Config(name string) Policy {
	if policy, ok := policies[Normalize(name)]; ok {
		return policy
	}
	return policies[Developer]
}

// HasPermission is a per-level allow-list, not an ordering: a developer
// requirement accepts any known tier, every other requirement accepts only
// that exact tier.
func HasPermission(userTier, required string) bool {
	userTier = Normalize(userTier)
	if !Valid(userTier) {
		return false
	}
	switch Normalize(required) {
	case Developer:
		return true
	case Professional:
		return userTier == Professional
	case Enterprise:
		return userTier == Enterprise
	default:
		return false
	}
}
