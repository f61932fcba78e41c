package project

import (
	"sync"
	"time"
)

// Cursor is a participant's position in a file.
type Cursor struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Selection is a participant's highlighted range in a file.
type Selection struct {
	File        string `json:"file"`
	StartLine   int    `json:"start_line"`
	StartColumn int    `json:"start_column"`
	EndLine     int    `json:"end_line"`
	EndColumn   int    `json:"end_column"`
}

// ChatMessage is one entry in a session's chat log.
type ChatMessage struct {
	From   string    `json:"from"`
	Body   string    `json:"body"`
	System bool      `json:"system,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// SessionState is a point-in-time snapshot of a collaboration session.
type SessionState struct {
	ID            string               `json:"session_id"`
	ProjectID     string               `json:"project_id"`
	Initiator     string               `json:"initiator"`
	Participants  []string             `json:"participants"`
	ActiveUsers   []string             `json:"active_users"`
	CurrentBranch string               `json:"current_branch"`
	Cursors       map[string]Cursor    `json:"cursors"`
	Selections    map[string]Selection `json:"selections"`
	Chat          []ChatMessage        `json:"chat"`
	CreatedAt     time.Time            `json:"created_at"`
	LastActivity  time.Time            `json:"last_activity"`
	IsActive      bool                 `json:"is_active"`
}

// CollaborationSession is an ephemeral shared-editing context over one
// project. It lives only in memory; ending it keeps the history readable
// but rejects no further activity tracking.
// Safe for concurrent use.
type CollaborationSession struct {
	mu            sync.Mutex
	id            string
	projectID     string
	initiator     string
	participants  []string
	activeUsers   map[string]bool
	currentBranch string
	cursors       map[string]Cursor
	selections    map[string]Selection
	chat          []ChatMessage
	createdAt     time.Time
	lastActivity  time.Time
	active        bool
}

func newCollaborationSession(id, projectID, initiator string) *CollaborationSession {
	now := time.Now().UTC()
	return &CollaborationSession{
		id:            id,
		projectID:     projectID,
		initiator:     initiator,
		participants:  []string{initiator},
		activeUsers:   map[string]bool{initiator: true},
		currentBranch: "main",
		cursors:       make(map[string]Cursor),
		selections:    make(map[string]Selection),
		createdAt:     now,
		lastActivity:  now,
		active:        true,
	}
}

// ID returns the session id.
func (s *CollaborationSession) ID() string { return s.id }

// ProjectID returns the project the session edits.
func (s *CollaborationSession) ProjectID() string { return s.projectID }

// IsActive reports whether the session is still live.
func (s *CollaborationSession) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Join adds a participant and marks them active.
func (s *CollaborationSession) Join(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !containsStr(s.participants, user) {
		s.participants = append(s.participants, user)
	}
	s.activeUsers[user] = true
	s.touch()
}

// Leave marks a participant inactive; their history is retained.
func (s *CollaborationSession) Leave(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeUsers, user)
	delete(s.cursors, user)
	delete(s.selections, user)
	s.touch()
}

// MoveCursor records a participant's cursor position.
func (s *CollaborationSession) MoveCursor(user string, c Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[user] = c
	s.touch()
}

// Select records a participant's selection range.
func (s *CollaborationSession) Select(user string, sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[user] = sel
	s.touch()
}

// SwitchBranch changes the branch the session edits.
func (s *CollaborationSession) SwitchBranch(branch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentBranch = branch
	s.touch()
}

// PostMessage appends a chat message from a participant.
func (s *CollaborationSession) PostMessage(from, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append(s.chat, ChatMessage{From: from, Body: body, SentAt: time.Now().UTC()})
	s.touch()
}

// PostSystemMessage appends a system-generated chat message.
func (s *CollaborationSession) PostSystemMessage(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append(s.chat, ChatMessage{From: "system", Body: body, System: true, SentAt: time.Now().UTC()})
	s.touch()
}

// End marks the session inactive. Chat and participant history remain
// readable through State.
func (s *CollaborationSession) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.touch()
}

// State returns a snapshot copy of the session.
func (s *CollaborationSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	activeUsers := make([]string, 0, len(s.activeUsers))
	for u := range s.activeUsers {
		activeUsers = append(activeUsers, u)
	}
	cursors := make(map[string]Cursor, len(s.cursors))
	for u, c := range s.cursors {
		cursors[u] = c
	}
	selections := make(map[string]Selection, len(s.selections))
	for u, sel := range s.selections {
		selections[u] = sel
	}

	return SessionState{
		ID:            s.id,
		ProjectID:     s.projectID,
		Initiator:     s.initiator,
		Participants:  append([]string(nil), s.participants...),
		ActiveUsers:   activeUsers,
		CurrentBranch: s.currentBranch,
		Cursors:       cursors,
		Selections:    selections,
		Chat:          append([]ChatMessage(nil), s.chat...),
		CreatedAt:     s.createdAt,
		LastActivity:  s.lastActivity,
		IsActive:      s.active,
	}
}

// touch updates the activity timestamp. Callers must hold the lock.
func (s *CollaborationSession) touch() {
	s.lastActivity = time.Now().UTC()
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
