package auth

import (
	"strings"

	"drydock/internal/domain/deploy"
)

// rolePermissions maps each role to the permissions it carries. Admin
// is handled as a wildcard, not listed per permission.
var rolePermissions = map[string][]string{
	deploy.RoleOperator: {
		deploy.PermDeployRead,
		deploy.PermDeployWrite,
		deploy.PermDeployRollback,
		deploy.PermDeployPromote,
		deploy.PermBuildRead,
	},
	deploy.RoleCI: {
		deploy.PermBuildRead,
		deploy.PermBuildWrite,
		deploy.PermDeployRead,
	},
	deploy.RoleViewer: {
		deploy.PermDeployRead,
		deploy.PermBuildRead,
	},
}

type Authorizer struct{}

func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

func (a *Authorizer) Require(principal deploy.Principal, permission string) error {
	if principal.ActorID == "" {
		return deploy.ErrRoleForbidden("")
	}
	if permission == "" {
		return nil
	}
	if principal.Role == deploy.RoleAdmin {
		return nil
	}
	if strings.HasPrefix(permission, "admin:") {
		return deploy.ErrRoleForbidden(principal.Role)
	}
	for _, p := range rolePermissions[principal.Role] {
		if p == permission {
			return nil
		}
	}
	return deploy.ErrRoleForbidden(principal.Role)
}
