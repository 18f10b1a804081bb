package db

import "time"

type DeploymentModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	Service        string `gorm:"index;not null"`
	Environment    string `gorm:"index;not null"`
	Version        string `gorm:"not null"`
	RecipeID       string `gorm:"not null"`
	RecipeRevision int
	State          string `gorm:"index;not null"`
	Kind           string `gorm:"not null"`
	RollbackOf     string `gorm:"type:uuid"`
	SourceEnv      string
	SupersededBy   string `gorm:"type:uuid"`
	GroupID        string `gorm:"index;not null"`
	ExecutionID    string
	ExecutionURL   string
	FailuresJSON   []byte    `gorm:"type:jsonb"`
	CreatedAt      time.Time `gorm:"index;not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (DeploymentModel) TableName() string {
	return "deployments"
}

type DeliveryGroupModel struct {
	ID                       string `gorm:"primaryKey"`
	ServicesJSON             []byte `gorm:"type:jsonb;not null"`
	RecipesJSON              []byte `gorm:"type:jsonb;not null"`
	MaxConcurrentDeployments int
	DailyDeployQuota         int
	DailyRollbackQuota       int
	Owners                   string
	CreatedAt                time.Time `gorm:"not null"`
}

func (DeliveryGroupModel) TableName() string {
	return "delivery_groups"
}

type EnvironmentModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	GroupID        string `gorm:"index;not null"`
	Name           string `gorm:"not null"`
	Type           string `gorm:"not null"`
	Position       int    `gorm:"not null"`
	PromotionOrder *int
	Enabled        bool `gorm:"not null"`
}

func (EnvironmentModel) TableName() string {
	return "environments"
}

type RecipeModel struct {
	ID               string `gorm:"primaryKey"`
	DeployPipeline   string `gorm:"not null"`
	RollbackPipeline string
	Status           string `gorm:"not null"`
	Revision         int    `gorm:"not null"`
	Summary          string `gorm:"size:512"`
	CreatedAt        time.Time
}

func (RecipeModel) TableName() string {
	return "recipes"
}

type BuildModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Service     string `gorm:"index:idx_builds_service_version,unique;not null"`
	Version     string `gorm:"index:idx_builds_service_version,unique;not null"`
	ArtifactRef string `gorm:"not null"`
	SHA256      string `gorm:"column:sha256;not null"`
	SizeBytes   int64  `gorm:"not null"`
	ContentType string `gorm:"not null"`
	GitSHA      string `gorm:"column:git_sha"`
	GitBranch   string
	CIProvider  string `gorm:"column:ci_provider"`
	CIRunID     string `gorm:"column:ci_run_id"`
	CommitURL   string
	RunURL      string
	Publisher   string
	CreatedAt   time.Time `gorm:"not null"`
}

func (BuildModel) TableName() string {
	return "builds"
}

type UploadCapabilityModel struct {
	Token       string    `gorm:"type:uuid;primaryKey"`
	Service     string    `gorm:"index;not null"`
	Version     string    `gorm:"not null"`
	SHA256      string    `gorm:"column:sha256;not null"`
	SizeBytes   int64     `gorm:"not null"`
	ContentType string    `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"not null"`
	ConsumedAt  *time.Time
	CreatedAt   time.Time `gorm:"not null"`
}

func (UploadCapabilityModel) TableName() string {
	return "upload_capabilities"
}

type CiPublisherModel struct {
	Name                string    `gorm:"primaryKey"`
	Provider            string    `gorm:"not null"`
	IssuersJSON         []byte    `gorm:"type:jsonb"`
	AudiencesJSON       []byte    `gorm:"type:jsonb"`
	AuthorizedPartyJSON []byte    `gorm:"type:jsonb"`
	SubjectsJSON        []byte    `gorm:"type:jsonb"`
	SubjectPrefixesJSON []byte    `gorm:"type:jsonb"`
	EmailsJSON          []byte    `gorm:"type:jsonb"`
	CreatedAt           time.Time `gorm:"not null"`
}

func (CiPublisherModel) TableName() string {
	return "ci_publishers"
}

type AuditEventModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Action     string `gorm:"index;not null"`
	ActorID    string `gorm:"not null"`
	ActorRole  string
	RequestID  string
	BeforeJSON []byte    `gorm:"type:jsonb"`
	AfterJSON  []byte    `gorm:"type:jsonb"`
	CreatedAt  time.Time `gorm:"index;not null"`
}

func (AuditEventModel) TableName() string {
	return "audit_events"
}
