package project

import (
	"fmt"
	"time"
)

// Pull request statuses.
const (
	PRStatusOpen   = "open"
	PRStatusMerged = "merged"
	PRStatusClosed = "closed"
)

// PullRequest proposes merging one branch into another, persisted as one
// JSON document under the project's pull_requests subarea.
type PullRequest struct {
	ID           string    `json:"pr_id"`
	ProjectID    string    `json:"project_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Author       string    `json:"author"`
	SourceBranch string    `json:"source_branch"`
	TargetBranch string    `json:"target_branch"`
	Status       string    `json:"status"`
	Reviewers    []string  `json:"reviewers"`
	Approvals    []string  `json:"approvals"`
	Comments     []Comment `json:"comments"`
	MergeCommit  string    `json:"merge_commit,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newPullRequest(projectID, title, description, author, sourceBranch, targetBranch string) *PullRequest {
	now := time.Now().UTC()
	return &PullRequest{
		ID:           newDocID(title),
		ProjectID:    projectID,
		Title:        title,
		Description:  description,
		Author:       author,
		SourceBranch: sourceBranch,
		TargetBranch: targetBranch,
		Status:       PRStatusOpen,
		Reviewers:    []string{},
		Approvals:    []string{},
		Comments:     []Comment{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// addComment appends a discussion entry and bumps the update time.
func (pr *PullRequest) addComment(author, body string) {
	now := time.Now().UTC()
	pr.Comments = append(pr.Comments, Comment{Author: author, Body: body, CreatedAt: now})
	pr.UpdatedAt = now
}

// recordMerge marks the pull request merged and logs the outcome.
func (pr *PullRequest) recordMerge(commitID, actor string) {
	pr.Status = PRStatusMerged
	pr.MergeCommit = commitID
	pr.addComment("system", fmt.Sprintf("Merged %s into %s as %s by %s", pr.SourceBranch, pr.TargetBranch, commitID, actor))
}
