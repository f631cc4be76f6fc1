package mmodel

import (
	"time"

	"github.com/computor-org/computor/pkg/ltree"
)

// Deployment lifecycle states.
const (
	DeploymentStatusPending   = "pending"
	DeploymentStatusDeploying = "deploying"
	DeploymentStatusDeployed  = "deployed"
	DeploymentStatusFailed    = "failed"
)

// CourseContentDeployment binds a course content to an example version.
// One deployment per content is expected; the row mutates while the workflow
// engine drives it through the status transitions.
type CourseContentDeployment struct {
	ID                string     `json:"id"`
	CourseContentID   string     `json:"courseContentId"`
	ExampleVersionID  *string    `json:"exampleVersionId"`
	ExampleIdentifier ltree.Path `json:"exampleIdentifier"`
	DeploymentStatus  string     `json:"deploymentStatus"`
	WorkflowID        *string    `json:"workflowId"`
	Message           string     `json:"message,omitempty"`
	DeployedAt        *time.Time `json:"deployedAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}
