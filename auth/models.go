package auth

type Role string

const (
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Agent is the agency member behind a bearer token. Agencies manage their own
// accounts elsewhere; this service only checks the token they present.
type Agent struct {
	ID    string
	Email string
	Name  string
	Role  Role
}
