package mmodel

import (
	"time"

	"github.com/computor-org/computor/pkg/ltree"
)

// Example is a deployable exercise template addressed by a dotted identifier
// (e.g. "itp.py.hello").
type Example struct {
	ID         string     `json:"id"`
	Identifier ltree.Path `json:"identifier"`
	Title      string     `json:"title"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// ExampleVersion is one immutable published version of an example.
type ExampleVersion struct {
	ID            string    `json:"id"`
	ExampleID     string    `json:"exampleId"`
	VersionNumber int       `json:"versionNumber"`
	VersionTag    string    `json:"versionTag"`
	StoragePath   string    `json:"storagePath"`
	CreatedAt     time.Time `json:"createdAt"`
}
