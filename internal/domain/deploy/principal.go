package deploy

// Principal is the pre-verified identity attached to a request. The core
// never parses tokens; the auth boundary supplies this plus the raw
// verified claim map (used for CI publisher attribution).
type Principal struct {
	ActorID string
	Role    string
	Email   string
	Claims  map[string]any
}

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleCI       = "ci"
	RoleViewer   = "viewer"
)
