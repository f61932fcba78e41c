// Package vcs implements the Git-like commit/branch/merge model used by
// collaborative research projects. Repositories keep their full state in
// memory and persist it as a JSON document after every mutation.
package vcs

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Change records the before/after content of one file in a commit.
type Change struct {
	Old string `json:"old_content"`
	New string `json:"new_content"`
}

// CommitMetadata is the mutable status bag attached to a commit.
type CommitMetadata struct {
	AgentRole        string   `json:"agent_role"`
	ReviewStatus     string   `json:"review_status"`
	TestStatus       string   `json:"test_status"`
	DeploymentStatus string   `json:"deployment_status"`
	MergeSources     []string `json:"merge_sources,omitempty"`
}

// Commit is an immutable snapshot of file changes on a branch. Only the
// metadata bag may change after creation.
type Commit struct {
	ID        string            `json:"id"`
	Author    string            `json:"author_agent"`
	Message   string            `json:"message"`
	Parent    string            `json:"parent_commit,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Changes   map[string]Change `json:"changes"`
	Metadata  CommitMetadata    `json:"metadata"`
}

func newCommit(author, message, parent string) *Commit {
	return &Commit{
		ID:        newCommitID(),
		Author:    author,
		Message:   message,
		Parent:    parent,
		Timestamp: time.Now().UTC(),
		Changes:   make(map[string]Change),
		Metadata: CommitMetadata{
			AgentRole:        "unknown",
			ReviewStatus:     "pending",
			TestStatus:       "pending",
			DeploymentStatus: "pending",
		},
	}
}

// newCommitID hashes fresh random entropy plus the current time. Only
// uniqueness matters; ids are truncated to 16 hex characters.
func newCommitID() string {
	sum := sha256.Sum256([]byte(uuid.New().String() + time.Now().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:16]
}

// clone returns a value copy safe to hand out to callers.
func (c *Commit) clone() Commit {
	out := *c
	out.Changes = make(map[string]Change, len(c.Changes))
	for p, ch := range c.Changes {
		out.Changes[p] = ch
	}
	if c.Metadata.MergeSources != nil {
		out.Metadata.MergeSources = append([]string(nil), c.Metadata.MergeSources...)
	}
	return out
}
