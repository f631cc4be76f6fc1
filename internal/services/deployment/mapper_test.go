package deployment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const studentImportMapping = `{
	"version": "1.0",
	"description": "Student import mapping",
	"user_fields": {
		"given_name": "First Name",
		"family_name": "Last Name",
		"email": "Email",
		"username": {"template": "{email}", "transform": "extract_username"},
		"number": "Student ID"
	},
	"account_fields": {
		"provider": "gitlab",
		"type": "oauth",
		"provider_account_id": {"ref": "username"},
		"gitlab_email": {"ref": "email"}
	},
	"course_member_fields": {
		"organization": "kit",
		"course_family": "prog",
		"course": "prog1",
		"role": "_student",
		"group": "Group",
		"condition": "{Group} != \"\""
	}
}`

func TestMapCSVStudentImport(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(studentImportMapping))
	require.NoError(t, err)

	csvData := strings.Join([]string{
		"First Name,Last Name,Email,Student ID,Group",
		"Ada,Lovelace,Ada.Lovelace@Example.com,1001,A",
		"Charles,Babbage,charles@example.com,1002,",
		"Grace,Hopper,grace@example.com,1003,B",
	}, "\n")

	out, err := NewMapper(cfg).MapCSVReader(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, out.Users, 3)

	ada := out.Users[0]
	assert.Equal(t, "Ada", ada.User.GivenName)
	assert.Equal(t, "Ada.Lovelace@Example.com", ada.User.Email)
	// Username derives from the email template with extract_username.
	assert.Equal(t, "Ada.Lovelace", ada.User.Username)
	assert.Equal(t, "1001", ada.User.Number)

	require.Len(t, ada.Accounts, 1)
	assert.Equal(t, "gitlab", ada.Accounts[0].Provider)
	assert.Equal(t, "Ada.Lovelace", ada.Accounts[0].ProviderAccountID)
	assert.Equal(t, "Ada.Lovelace@Example.com", ada.Accounts[0].GitlabEmail)

	// Only rows with a non-empty Group yield a course membership.
	require.Len(t, ada.CourseMembers, 1)
	assert.Equal(t, "kit", ada.CourseMembers[0].Organization)
	assert.Equal(t, "prog1", ada.CourseMembers[0].Course)
	assert.Equal(t, "_student", ada.CourseMembers[0].Role)
	assert.Equal(t, "A", ada.CourseMembers[0].Group)

	charles := out.Users[1]
	assert.Empty(t, charles.CourseMembers)

	grace := out.Users[2]
	require.Len(t, grace.CourseMembers, 1)
	assert.Equal(t, "B", grace.CourseMembers[0].Group)
}

func TestMapCSVLowercasedUsernames(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(`{
		"user_fields": {
			"email": "Email",
			"username": {"source": {"template": "{email}"}, "transform": "to_lower"}
		}
	}`))
	require.NoError(t, err)

	out, err := NewMapper(cfg).MapRows([]map[string]any{
		{"Email": "John.DOE@Example.com"},
	})
	require.NoError(t, err)
	require.Len(t, out.Users, 1)
	assert.Equal(t, "john.doe@example.com", out.Users[0].User.Username)
}

func TestFieldReferenceChains(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(`{
		"user_fields": {
			"email": "Email",
			"username": {"template": "{email}", "transform": "extract_username"},
			"gitlab_username": {"ref": "username"}
		}
	}`))
	require.NoError(t, err)

	out, err := NewMapper(cfg).MapRows([]map[string]any{
		{"Email": "jane@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "jane", out.Users[0].User.Username)
	// gitlab_username references the already computed username.
	assert.Equal(t, "jane", out.Users[0].User.GitlabUsername)
}

func TestUnresolvedReferenceYieldsNull(t *testing.T) {
	t.Parallel()

	// username references gitlab_username, which is computed later: the
	// forward reference resolves to null instead of looping.
	cfg, err := ParseConfig([]byte(`{
		"user_fields": {
			"email": "Email",
			"username": {"ref": "gitlab_username"},
			"gitlab_username": {"ref": "username"}
		}
	}`))
	require.NoError(t, err)

	out, err := NewMapper(cfg).MapRows([]map[string]any{
		{"Email": "jane@example.com"},
	})
	require.NoError(t, err)
	assert.Empty(t, out.Users[0].User.Username)
}

func TestRequiredFieldMissingCollectsRowErrors(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(`{
		"user_fields": {
			"email": {"source": "Email", "required": true}
		}
	}`))
	require.NoError(t, err)

	_, err = NewMapper(cfg).MapRows([]map[string]any{
		{"Email": "ok@example.com"},
		{"Email": ""},
		{"Other": "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Row 2")
	assert.Contains(t, err.Error(), "Row 3")
}

func TestDefaultsAndNullValues(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(`{
		"user_fields": {
			"email": "Email",
			"user_type": {"source": "Type", "default": "user"}
		},
		"transformations": {
			"null_values": ["", "N/A"]
		}
	}`))
	require.NoError(t, err)

	out, err := NewMapper(cfg).MapRows([]map[string]any{
		{"Email": "a@example.com", "Type": "N/A"},
	})
	require.NoError(t, err)
	assert.Equal(t, "user", out.Users[0].User.UserType)
}

func TestMultipleCourseMemberships(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(`{
		"user_fields": {"email": "Email"},
		"course_member_fields": [
			{"organization": "kit", "course_family": "prog", "course": "prog1", "role": "_student"},
			{"organization": "kit", "course_family": "prog", "course": "prog2", "role": "_student", "condition": "{Advanced} == \"yes\""}
		]
	}`))
	require.NoError(t, err)

	out, err := NewMapper(cfg).MapRows([]map[string]any{
		{"Email": "a@example.com", "Advanced": "yes"},
		{"Email": "b@example.com", "Advanced": "no"},
	})
	require.NoError(t, err)

	assert.Len(t, out.Users[0].CourseMembers, 2)
	assert.Len(t, out.Users[1].CourseMembers, 1)
}

func TestTransformations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		transform string
		input     any
		want      any
	}{
		{"extract_username", "extract_username", "a.b@x.org", "a.b"},
		{"extract_username passthrough", "extract_username", "no-at-sign", "no-at-sign"},
		{"to_lower", "to_lower", "ABC", "abc"},
		{"to_upper", "to_upper", "abc", "ABC"},
		{"strip", "strip", "  x ", "x"},
		{"to_bool yes", "to_bool", "Yes", true},
		{"to_bool off", "to_bool", "off", false},
		{"to_int", "to_int", "42.0", 42},
		{"to_snake_case", "to_snake_case", "GroupName", "group_name"},
		{"unknown is identity", "frobnicate", "x", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ApplyTransformation(tt.input, tt.transform))
		})
	}
}

func TestEvaluateCondition(t *testing.T) {
	t.Parallel()

	context := map[string]any{"Group": "A", "Empty": ""}

	assert.True(t, evaluateCondition(`{Group} != ""`, context))
	assert.False(t, evaluateCondition(`{Empty} != ""`, context))
	assert.True(t, evaluateCondition(`{Group} == "A"`, context))
	assert.False(t, evaluateCondition(`{Group} == "B"`, context))
	assert.True(t, evaluateCondition(`{Group}`, context))
	assert.False(t, evaluateCondition(`{Empty}`, context))
}
