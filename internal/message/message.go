// Package message defines the control protocol spoken between the
// screen2scp daemon and its CLI tools.
//
// All messages are newline-delimited JSON. Binary payloads (thumbnails) are
// base64-encoded so they are safe to embed in JSON strings. Each connection
// carries exactly one request line and one response line.
package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stewartcelani/screen2scp/internal/history"
	"github.com/stewartcelani/screen2scp/internal/imaging"
)

// Type identifies the kind of message.
type Type string

const (
	TypeList      Type = "LIST"
	TypeDelete    Type = "DELETE"
	TypeDeleteAll Type = "DELETE_ALL"
	TypeCopy      Type = "COPY"
	TypeToggle    Type = "TOGGLE"
	TypeStatus    Type = "STATUS"
	TypeResult    Type = "RESULT"
	TypeError     Type = "ERROR"
)

// CopyMode selects what COPY puts on the clipboard.
type CopyMode string

const (
	CopyPath   CopyMode = "path"
	CopyAll    CopyMode = "all"
	CopyBase64 CopyMode = "base64"
	CopyImage  CopyMode = "image"
)

// Toggle targets.
const (
	ToggleMonitor  = "monitor"
	ToggleAutoCopy = "autocopy"
)

// Record is the wire form of an upload history entry.
type Record struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	CaptureTime time.Time `json:"capture_time"`
	ByteSize    int64     `json:"byte_size"`
	RemotePath  string    `json:"remote_path"`
	Fingerprint string    `json:"fingerprint"`
	Thumbnail   string    `json:"thumbnail,omitempty"` // base64 PNG
}

// FromRecord converts r. The thumbnail is included only when withThumb is
// set.
func FromRecord(r *history.Record, withThumb bool) Record {
	out := Record{
		ID:          r.ID,
		Filename:    r.Filename,
		CaptureTime: r.CaptureTime,
		ByteSize:    r.ByteSize,
		RemotePath:  r.RemotePath,
		Fingerprint: r.Fingerprint.String(),
	}
	if withThumb && r.Thumbnail != nil {
		if b, err := imaging.EncodePNG(r.Thumbnail); err == nil {
			out.Thumbnail = base64.StdEncoding.EncodeToString(b)
		}
	}
	return out
}

// ThumbnailPNG returns the decoded thumbnail bytes, or nil if there are none.
func (r Record) ThumbnailPNG() ([]byte, error) {
	if r.Thumbnail == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(r.Thumbnail)
}

// Status describes a running daemon.
type Status struct {
	Version    string    `json:"version"`
	Source     string    `json:"source"`
	Remote     string    `json:"remote"`
	Monitoring bool      `json:"monitoring"`
	AutoCopy   bool      `json:"auto_copy"`
	Stage      string    `json:"stage"`
	LastSeen   string    `json:"last_seen,omitempty"`
	Uploads    int       `json:"uploads"`
	Logged     int       `json:"logged_fingerprints"`
	Dropped    uint64    `json:"dropped_events"`
	StartedAt  time.Time `json:"started_at"`
}

// Message is the top-level wire envelope.
type Message struct {
	// Always present
	Type Type `json:"type"`

	// DELETE, COPY: record ID, "last" or empty for the newest upload
	ID string `json:"id,omitempty"`

	// COPY
	Mode CopyMode `json:"mode,omitempty"`

	// TOGGLE
	Target string `json:"target,omitempty"`

	// LIST
	Thumbnails bool `json:"thumbnails,omitempty"`

	// RESULT
	Records []Record `json:"records,omitempty"`
	Status  *Status  `json:"status,omitempty"`
	Deleted int      `json:"deleted,omitempty"`
	Failed  int      `json:"failed,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
	Text    string   `json:"text,omitempty"`

	// ERROR
	Error string `json:"error,omitempty"`
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	return &m, nil
}

// Result returns an empty RESULT message.
func Result() *Message { return &Message{Type: TypeResult} }

// Errorf returns an ERROR message.
func Errorf(format string, args ...any) *Message {
	return &Message{Type: TypeError, Error: fmt.Sprintf(format, args...)}
}

// Err returns the error carried by an ERROR message, or nil.
func (m *Message) Err() error {
	if m.Type != TypeError {
		return nil
	}
	return fmt.Errorf("daemon: %s", m.Error)
}
