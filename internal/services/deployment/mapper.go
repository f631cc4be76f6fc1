package deployment

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/computor-org/computor/pkg/mmodel"
)

// Mapper converts table rows into deployment configurations using a
// MappingConfig. Field evaluation is left-to-right with an accumulating
// context, so later fields may reference earlier ones; a reference to a
// not-yet-populated key yields null (cycles degrade, they do not loop).
type Mapper struct {
	config *MappingConfig
}

// NewMapper returns a Mapper for the given configuration.
func NewMapper(config *MappingConfig) *Mapper {
	return &Mapper{config: config}
}

// MapCSV reads a CSV file (first row is the header) and maps every row.
func (m *Mapper) MapCSV(path string) (*mmodel.UsersDeploymentConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "CSV file not found: %s", path)
	}
	defer f.Close()

	return m.MapCSVReader(f)
}

// MapCSVReader maps CSV data from a reader.
func (m *Mapper) MapCSVReader(r io.Reader) (*mmodel.UsersDeploymentConfig, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "error reading CSV header")
	}

	var rows []map[string]any

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrap(err, "error reading CSV file")
		}

		row := make(map[string]any, len(header))

		for i, column := range header {
			if i < len(record) {
				row[column] = record[i]
			}
		}

		rows = append(rows, row)
	}

	return m.MapRows(rows)
}

// MapRows maps table rows into a UsersDeploymentConfig. Row errors are
// collected and reported together.
func (m *Mapper) MapRows(rows []map[string]any) (*mmodel.UsersDeploymentConfig, error) {
	var (
		users     []mmodel.UserAccountDeployment
		rowErrors []string
	)

	for idx, row := range rows {
		user, err := m.mapRow(row)
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: %v", idx+1, err))
			continue
		}

		users = append(users, *user)
	}

	if len(rowErrors) > 0 {
		return nil, errors.Errorf("mapping errors:\n%s", strings.Join(rowErrors, "\n"))
	}

	return &mmodel.UsersDeploymentConfig{Users: users}, nil
}

func (m *Mapper) mapRow(row map[string]any) (*mmodel.UserAccountDeployment, error) {
	context := m.buildContext(row, nil)

	user, err := m.mapUserFields(row, context)
	if err != nil {
		return nil, err
	}

	// Rebuild the context with user data so account and course member fields
	// can reference user fields.
	context = m.buildContext(row, user)

	out := &mmodel.UserAccountDeployment{User: *user}

	if m.config.AccountFields != nil {
		if account := m.mapAccountFields(row, context); account != nil {
			out.Accounts = append(out.Accounts, *account)
		}
	}

	for _, cmConfig := range m.config.CourseMembers {
		if cmConfig.Condition != "" && !evaluateCondition(cmConfig.Condition, context) {
			continue
		}

		member := m.mapCourseMemberFields(cmConfig, row, context)
		if member != nil {
			out.CourseMembers = append(out.CourseMembers, *member)
		}
	}

	return out, nil
}

func (m *Mapper) buildContext(row map[string]any, user *mmodel.UserDeployment) map[string]any {
	context := make(map[string]any, len(row)+8)

	for k, v := range row {
		context[k] = v
	}

	if user != nil {
		for k, v := range map[string]string{
			"given_name":  user.GivenName,
			"family_name": user.FamilyName,
			"email":       user.Email,
			"number":      user.Number,
			"username":    user.Username,
			"user_type":   user.UserType,
		} {
			if v != "" {
				context[k] = v
			}
		}
	}

	if m.config.Transformations != nil {
		for k, v := range m.config.Transformations.DefaultValues {
			if existing, ok := context[k]; !ok || IsNullValue(existing, m.config.nullValues()) {
				context[k] = v
			}
		}
	}

	return context
}

// userFieldOrder fixes the left-to-right evaluation order of user fields so
// later fields (e.g. username from {email}) see earlier ones.
var userFieldOrder = []string{
	"given_name", "family_name", "email", "number", "username",
	"user_type", "password", "roles", "gitlab_username", "gitlab_email",
}

func (m *Mapper) mapUserFields(row, context map[string]any) (*mmodel.UserDeployment, error) {
	sources := map[string]FieldSource{
		"given_name":      m.config.UserFields.GivenName,
		"family_name":     m.config.UserFields.FamilyName,
		"email":           m.config.UserFields.Email,
		"number":          m.config.UserFields.Number,
		"username":        m.config.UserFields.Username,
		"user_type":       m.config.UserFields.UserType,
		"password":        m.config.UserFields.Password,
		"roles":           m.config.UserFields.Roles,
		"gitlab_username": m.config.UserFields.GitlabUsername,
		"gitlab_email":    m.config.UserFields.GitlabEmail,
	}

	user := &mmodel.UserDeployment{UserType: "user"}

	for _, field := range userFieldOrder {
		source := sources[field]
		if source == nil {
			continue
		}

		value, err := m.extractFieldValue(source, row, context, field)
		if err != nil {
			return nil, err
		}

		if value == nil {
			continue
		}

		// Feed the computed value back so subsequent fields can reference it.
		context[field] = value

		switch field {
		case "given_name":
			user.GivenName = fmt.Sprint(value)
		case "family_name":
			user.FamilyName = fmt.Sprint(value)
		case "email":
			user.Email = fmt.Sprint(value)
		case "number":
			user.Number = fmt.Sprint(value)
		case "username":
			user.Username = fmt.Sprint(value)
		case "user_type":
			user.UserType = fmt.Sprint(value)
		case "password":
			user.Password = fmt.Sprint(value)
		case "roles":
			user.Roles = toStringSlice(value)
		case "gitlab_username":
			user.GitlabUsername = fmt.Sprint(value)
		case "gitlab_email":
			user.GitlabEmail = fmt.Sprint(value)
		}
	}

	return user, nil
}

func (m *Mapper) mapAccountFields(row, context map[string]any) *mmodel.AccountDeployment {
	account := &mmodel.AccountDeployment{
		Provider:       "gitlab",
		Type:           "oauth",
		CanCreateGroup: true,
	}

	fields := map[string]FieldSource{
		"provider":            m.config.AccountFields.Provider,
		"type":                m.config.AccountFields.Type,
		"provider_account_id": m.config.AccountFields.ProviderAccountID,
		"gitlab_username":     m.config.AccountFields.GitlabUsername,
		"gitlab_email":        m.config.AccountFields.GitlabEmail,
		"is_admin":            m.config.AccountFields.IsAdmin,
		"can_create_group":    m.config.AccountFields.CanCreateGroup,
	}

	var populated bool

	for field, source := range fields {
		if source == nil {
			continue
		}

		value, err := m.extractFieldValue(source, row, context, field)
		if err != nil || value == nil {
			continue
		}

		populated = true

		switch field {
		case "provider":
			account.Provider = fmt.Sprint(value)
		case "type":
			account.Type = fmt.Sprint(value)
		case "provider_account_id":
			account.ProviderAccountID = fmt.Sprint(value)
		case "gitlab_username":
			account.GitlabUsername = fmt.Sprint(value)
		case "gitlab_email":
			account.GitlabEmail = fmt.Sprint(value)
		case "is_admin":
			account.IsAdmin = ToBool(value)
		case "can_create_group":
			account.CanCreateGroup = ToBool(value)
		}
	}

	if !populated {
		return nil
	}

	return account
}

func (m *Mapper) mapCourseMemberFields(cfg CourseMemberFields, row, context map[string]any) *mmodel.CourseMemberDeployment {
	member := &mmodel.CourseMemberDeployment{Role: "_student"}

	fields := map[string]FieldSource{
		"id":            cfg.ID,
		"organization":  cfg.Organization,
		"course_family": cfg.CourseFamily,
		"course":        cfg.Course,
		"role":          cfg.Role,
		"group":         cfg.Group,
	}

	for field, source := range fields {
		if source == nil {
			continue
		}

		value, err := m.extractFieldValue(source, row, context, field)
		if err != nil || value == nil {
			continue
		}

		switch field {
		case "id":
			member.ID = fmt.Sprint(value)
		case "organization":
			member.Organization = fmt.Sprint(value)
		case "course_family":
			member.CourseFamily = fmt.Sprint(value)
		case "course":
			member.Course = fmt.Sprint(value)
		case "role":
			member.Role = fmt.Sprint(value)
		case "group":
			member.Group = fmt.Sprint(value)
		}
	}

	hasID := member.ID != ""
	hasPath := member.Organization != "" && member.CourseFamily != "" && member.Course != ""

	if !hasID && !hasPath {
		return nil
	}

	return member
}

// extractFieldValue evaluates one field source against a row and the
// accumulated context.
func (m *Mapper) extractFieldValue(source FieldSource, row, context map[string]any, fieldName string) (any, error) {
	switch src := source.(type) {
	case string:
		// Column reference first; plain literal otherwise.
		if _, ok := row[src]; ok {
			value := m.rowValue(row, src)
			if value == nil {
				if fallback, ok := context[fieldName]; ok {
					return fallback, nil
				}
			}

			return value, nil
		}

		return src, nil

	case bool, float64, int:
		return src, nil

	case map[string]any:
		if literal, ok := src["literal"]; ok {
			return literal, nil
		}

		if ref, ok := src["ref"].(string); ok {
			return context[ref], nil
		}

		if template, ok := src["template"].(string); ok {
			var value any = SubstituteTemplate(template, context)

			if transform, ok := src["transform"].(string); ok {
				value = ApplyTransformation(value, transform)
			}

			return value, nil
		}

		return m.extractMappingValue(src, row, context, fieldName)

	default:
		return source, nil
	}
}

// extractMappingValue evaluates the full {source, default, required,
// transform} form.
func (m *Mapper) extractMappingValue(src map[string]any, row, context map[string]any, fieldName string) (any, error) {
	inner, hasSource := src["source"]
	if !hasSource {
		return src, nil
	}

	var value any

	switch s := inner.(type) {
	case string:
		value = m.rowValue(row, s)
	case map[string]any:
		if literal, ok := s["literal"]; ok {
			value = literal
		} else if ref, ok := s["ref"].(string); ok {
			value = context[ref]
		} else if template, ok := s["template"].(string); ok {
			value = SubstituteTemplate(template, context)
		}
	default:
		value = inner
	}

	if transform, ok := src["transform"].(string); ok && value != nil {
		value = ApplyTransformation(value, transform)
	}

	if IsNullValue(value, m.config.nullValues()) {
		if def, ok := src["default"]; ok && def != nil {
			value = def
		}
	}

	if required, ok := src["required"].(bool); ok && required && IsNullValue(value, m.config.nullValues()) {
		return nil, errors.Errorf("required field %q is missing or empty", fieldName)
	}

	if IsNullValue(value, m.config.nullValues()) {
		return nil, nil
	}

	return value, nil
}

func (m *Mapper) rowValue(row map[string]any, column string) any {
	value, ok := row[column]
	if !ok || IsNullValue(value, m.config.nullValues()) {
		return nil
	}

	return value
}

func toStringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}

		return out
	case string:
		return Split(v, ",")
	default:
		return []string{fmt.Sprint(v)}
	}
}

// evaluateCondition evaluates `{x} == "v"` / `{x} != "v"` style conditions;
// anything else is truthy when the substituted string is non-empty.
func evaluateCondition(condition string, context map[string]any) bool {
	evaluated := SubstituteTemplate(condition, context)

	trim := func(s string) string {
		return strings.Trim(strings.TrimSpace(s), `"'`)
	}

	if left, right, ok := strings.Cut(evaluated, " != "); ok {
		return trim(left) != trim(right)
	}

	if left, right, ok := strings.Cut(evaluated, " == "); ok {
		return trim(left) == trim(right)
	}

	return strings.TrimSpace(evaluated) != ""
}
