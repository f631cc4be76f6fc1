// Package ltree implements dotted-label hierarchical paths compatible with the
// PostgreSQL ltree type (e.g. "itp.py.hello"). Paths are used both for course
// content structure and for example identifiers.
package ltree

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
)

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Path is a dotted hierarchical identifier. The zero value is the empty path.
type Path struct {
	raw string
}

// Parse validates and returns a Path. Every dot-separated label must be a
// non-empty run of [A-Za-z0-9_].
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}

	for _, label := range strings.Split(s, ".") {
		if !labelPattern.MatchString(label) {
			return Path{}, fmt.Errorf("invalid ltree label %q in path %q", label, s)
		}
	}

	return Path{raw: s}, nil
}

// MustParse is Parse that panics on invalid input. Intended for literals in
// tests and fixtures.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return p
}

// String returns the dotted representation.
func (p Path) String() string {
	return p.raw
}

// IsZero reports whether the path is empty.
func (p Path) IsZero() bool {
	return p.raw == ""
}

// Level returns the number of labels, mirroring nlevel() in PostgreSQL.
func (p Path) Level() int {
	if p.raw == "" {
		return 0
	}

	return strings.Count(p.raw, ".") + 1
}

// Subpath returns the first n labels, mirroring subpath(path, 0, n).
// n beyond the path's level returns the path unchanged.
func (p Path) Subpath(n int) Path {
	if n <= 0 || p.raw == "" {
		return Path{}
	}

	labels := strings.Split(p.raw, ".")
	if n >= len(labels) {
		return p
	}

	return Path{raw: strings.Join(labels[:n], ".")}
}

// Parent returns the path with the last label removed; the empty path for
// single-label paths.
func (p Path) Parent() Path {
	idx := strings.LastIndex(p.raw, ".")
	if idx < 0 {
		return Path{}
	}

	return Path{raw: p.raw[:idx]}
}

// Equal reports label-wise equality.
func (p Path) Equal(other Path) bool {
	return p.raw == other.raw
}

// IsDescendantOf reports whether p is other or below it, mirroring the
// ltree <@ operator (a path is a descendant of itself).
func (p Path) IsDescendantOf(other Path) bool {
	if other.raw == "" {
		return true
	}

	if p.raw == other.raw {
		return true
	}

	return strings.HasPrefix(p.raw, other.raw+".")
}

// IsStrictDescendantOf reports whether p is strictly below other.
func (p Path) IsStrictDescendantOf(other Path) bool {
	return p.raw != other.raw && p.IsDescendantOf(other)
}

// Prefixes returns every ancestor prefix of p including p itself, ordered from
// the root down.
func (p Path) Prefixes() []Path {
	if p.raw == "" {
		return nil
	}

	labels := strings.Split(p.raw, ".")
	out := make([]Path, 0, len(labels))

	for i := 1; i <= len(labels); i++ {
		out = append(out, Path{raw: strings.Join(labels[:i], ".")})
	}

	return out
}

// Value implements driver.Valuer so paths bind directly as query arguments.
func (p Path) Value() (driver.Value, error) {
	return p.raw, nil
}

// Scan implements sql.Scanner for ltree columns.
func (p *Path) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = Path{}
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}

		*p = parsed

		return nil
	case []byte:
		return p.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ltree.Path", src)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}
