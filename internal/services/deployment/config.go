// Package deployment converts CSV/table rows into user, account and course
// membership deployment configurations, driven by a declarative JSON mapping.
package deployment

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	validator "gopkg.in/go-playground/validator.v9"
)

// FieldSource describes where a field value comes from. Exactly one of the
// forms is used:
//
//	"Column Name"                      — column reference (or literal when absent)
//	{"literal": ...}                   — literal value
//	{"template": "{a}_{b}"}            — template substitution over the context
//	{"ref": "other_field"}             — reference to an already computed field
//	{"source": ..., "transform": ...}  — full form with default/required/transform
//
// It is deliberately loose (any) because mapping files mix the forms freely;
// the mapper normalizes at evaluation time.
type FieldSource = any

// FieldMapping is the full form of a field configuration.
type FieldMapping struct {
	Source    any    `json:"source"`
	Default   any    `json:"default,omitempty"`
	Required  bool   `json:"required,omitempty"`
	Transform string `json:"transform,omitempty"`
}

// UserFields maps table columns onto UserDeployment fields.
type UserFields struct {
	GivenName      FieldSource `json:"given_name,omitempty"`
	FamilyName     FieldSource `json:"family_name,omitempty"`
	Email          FieldSource `json:"email,omitempty"`
	Number         FieldSource `json:"number,omitempty"`
	Username       FieldSource `json:"username,omitempty"`
	UserType       FieldSource `json:"user_type,omitempty"`
	Password       FieldSource `json:"password,omitempty"`
	Roles          FieldSource `json:"roles,omitempty"`
	GitlabUsername FieldSource `json:"gitlab_username,omitempty"`
	GitlabEmail    FieldSource `json:"gitlab_email,omitempty"`
}

// AccountFields maps table columns onto AccountDeployment fields. When nil at
// the top level, no accounts are created.
type AccountFields struct {
	Provider          FieldSource `json:"provider,omitempty"`
	Type              FieldSource `json:"type,omitempty"`
	ProviderAccountID FieldSource `json:"provider_account_id,omitempty"`
	GitlabUsername    FieldSource `json:"gitlab_username,omitempty"`
	GitlabEmail       FieldSource `json:"gitlab_email,omitempty"`
	IsAdmin           FieldSource `json:"is_admin,omitempty"`
	CanCreateGroup    FieldSource `json:"can_create_group,omitempty"`
}

// CourseMemberFields maps table columns onto one CourseMemberDeployment.
// Condition guards the membership: it is only emitted when the condition
// evaluates true against the row context.
type CourseMemberFields struct {
	ID           FieldSource `json:"id,omitempty"`
	Organization FieldSource `json:"organization,omitempty"`
	CourseFamily FieldSource `json:"course_family,omitempty"`
	Course       FieldSource `json:"course,omitempty"`
	Role         FieldSource `json:"role,omitempty"`
	Group        FieldSource `json:"group,omitempty"`
	Condition    string      `json:"condition,omitempty"`
}

// Transformations carries global mapping rules.
type Transformations struct {
	DefaultValues map[string]any `json:"default_values,omitempty"`
	NullValues    []string       `json:"null_values,omitempty"`
}

// MappingConfig is the root configuration for mapping table data to
// deployment configurations.
type MappingConfig struct {
	Version         string                `json:"version,omitempty"`
	Description     string                `json:"description,omitempty"`
	UserFields      UserFields            `json:"user_fields" validate:"required"`
	AccountFields   *AccountFields        `json:"account_fields,omitempty"`
	CourseMembers   []CourseMemberFields  `json:"-"`
	Transformations *Transformations      `json:"transformations,omitempty"`
	Metadata        map[string]any        `json:"metadata,omitempty"`

	// RawCourseMembers accepts both a single object and a list.
	RawCourseMembers json.RawMessage `json:"course_member_fields,omitempty"`
}

var validate = validator.New()

// ParseConfig decodes and validates a mapping configuration from JSON.
func ParseConfig(raw []byte) (*MappingConfig, error) {
	var cfg MappingConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "invalid mapping config JSON")
	}

	if len(cfg.RawCourseMembers) > 0 {
		var list []CourseMemberFields
		if err := json.Unmarshal(cfg.RawCourseMembers, &list); err == nil {
			cfg.CourseMembers = list
		} else {
			var single CourseMemberFields
			if err := json.Unmarshal(cfg.RawCourseMembers, &single); err != nil {
				return nil, errors.Wrap(err, "invalid course_member_fields")
			}

			cfg.CourseMembers = []CourseMemberFields{single}
		}
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid mapping config schema")
	}

	return &cfg, nil
}

// LoadConfig reads and parses a mapping configuration file.
func LoadConfig(path string) (*MappingConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config file not found: %s", path)
	}

	return ParseConfig(raw)
}

// nullValues returns the configured null markers, or the defaults.
func (c *MappingConfig) nullValues() []string {
	if c.Transformations != nil && c.Transformations.NullValues != nil {
		return c.Transformations.NullValues
	}

	return []string{"", "null", "NULL", "None", "N/A", "-"}
}
