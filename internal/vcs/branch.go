package vcs

import "time"

// BranchMetadata holds branch-level settings and access info.
type BranchMetadata struct {
	Description   string   `json:"description"`
	Protected     bool     `json:"protected"`
	Collaborators []string `json:"collaborators"`
}

// Branch is a named, independently advanceable pointer into the commit
// history. Exactly one branch per repository ("main") is the default.
type Branch struct {
	Name      string         `json:"name"`
	CreatedBy string         `json:"created_by"`
	Head      string         `json:"head_commit,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	IsDefault bool           `json:"is_default"`
	Metadata  BranchMetadata `json:"metadata"`
}

func newBranch(name, createdBy, head string) *Branch {
	return &Branch{
		Name:      name,
		CreatedBy: createdBy,
		Head:      head,
		CreatedAt: time.Now().UTC(),
	}
}

func (b *Branch) clone() Branch {
	out := *b
	out.Metadata.Collaborators = append([]string(nil), b.Metadata.Collaborators...)
	return out
}
