package project

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Issue types.
const (
	IssueTypeBug         = "bug"
	IssueTypeFeature     = "feature"
	IssueTypeEnhancement = "enhancement"
	IssueTypeTask        = "task"
)

// Issue priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Issue statuses.
const (
	IssueStatusOpen       = "open"
	IssueStatusInProgress = "in_progress"
	IssueStatusClosed     = "closed"
	IssueStatusResolved   = "resolved"
)

// Comment is a single entry in an issue or pull request discussion.
// System-generated entries use the "system" author.
type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue is a tracked work item, persisted as one JSON document under the
// project's issues subarea.
type Issue struct {
	ID          string    `json:"issue_id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	Assignee    string    `json:"assignee,omitempty"`
	Type        string    `json:"issue_type"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Labels      []string  `json:"labels"`
	Comments    []Comment `json:"comments"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// newDocID derives a short id from the creation instant and a seed string.
func newDocID(seed string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d%s", time.Now().UnixNano(), seed)))
	return hex.EncodeToString(sum[:])[:8]
}

func newIssue(projectID, title, description, createdBy, issueType, priority string, labels []string) *Issue {
	now := time.Now().UTC()
	if issueType == "" {
		issueType = IssueTypeTask
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if labels == nil {
		labels = []string{}
	}
	return &Issue{
		ID:          newDocID(title),
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		CreatedBy:   createdBy,
		Type:        issueType,
		Priority:    priority,
		Status:      IssueStatusOpen,
		Labels:      labels,
		Comments:    []Comment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// setStatus transitions the issue and records a system comment.
func (i *Issue) setStatus(status, actor string) {
	now := time.Now().UTC()
	i.Comments = append(i.Comments, Comment{
		Author:    "system",
		Body:      fmt.Sprintf("Status changed from %s to %s by %s", i.Status, status, actor),
		CreatedAt: now,
	})
	i.Status = status
	i.UpdatedAt = now
}
