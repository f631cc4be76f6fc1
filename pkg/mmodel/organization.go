package mmodel

import (
	"time"

	"github.com/computor-org/computor/pkg/ltree"
)

// CreateOrganizationInput is a struct design to encapsulate request create payload data.
type CreateOrganizationInput struct {
	Title      string         `json:"title" validate:"required,max=256"`
	Path       string         `json:"path" validate:"required,max=256"`
	Properties map[string]any `json:"properties,omitempty"`
}

// UpdateOrganizationInput is a struct design to encapsulate request update payload data.
type UpdateOrganizationInput struct {
	Title      string         `json:"title" validate:"max=256"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Organization is the root of the ownership hierarchy
// (organization → course family → course).
type Organization struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Path       ltree.Path     `json:"path"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  *time.Time     `json:"deletedAt"`
}

// Organizations is a paginated collection of Organization.
type Organizations struct {
	Items []Organization `json:"items"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// CourseFamily groups courses under an organization.
type CourseFamily struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	Title          string         `json:"title"`
	Path           ltree.Path     `json:"path"`
	Properties     map[string]any `json:"properties,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      *time.Time     `json:"deletedAt"`
}
