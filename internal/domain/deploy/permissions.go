package deploy

const (
	PermDeployRead     = "deploy:read"
	PermDeployWrite    = "deploy:write"
	PermDeployRollback = "deploy:rollback"
	PermDeployPromote  = "deploy:promote"
	PermBuildRead      = "build:read"
	PermBuildWrite     = "build:write"
	PermAdminRead      = "admin:read"
	PermAdminWrite     = "admin:write"
)
