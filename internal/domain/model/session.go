package model

import "time"

// MetadataKeySession is the key under which continuation metadata lives in a
// content record's metadata blob. Sibling keys belong to other features and
// must survive session writes untouched.
const MetadataKeySession = "claude_session"

// SessionMetadata is the continuation state for a remote code-execution
// session, attached to the content record that anchors the conversation.
//
// S3URL is the authoritative artifact location; R2URL is the legacy field
// kept for records written before the storage migration.
type SessionMetadata struct {
	SessionID     string     `json:"session_id"`
	S3URL         string     `json:"s3_url,omitempty"`
	R2URL         string     `json:"r2_url,omitempty"`
	InitialPrompt string     `json:"initial_prompt,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
}

// ArtifactURL resolves the stored artifact location, preferring the new
// field and falling back to the legacy one.
func (m *SessionMetadata) ArtifactURL() string {
	if m.S3URL != "" {
		return m.S3URL
	}
	return m.R2URL
}

// Valid reports whether this metadata identifies a continuable session:
// a session id plus at least one artifact location. Anything else is
// treated as absent.
func (m *SessionMetadata) Valid() bool {
	return m != nil && m.SessionID != "" && (m.S3URL != "" || m.R2URL != "")
}
