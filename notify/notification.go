package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	session "github.com/goliatone/go-erp-session"
)

// Status is the severity tag of a notification.
type Status string

const (
	StatusNormal  Status = "NORMAL"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
)

// ID is the server assigned identifier. The API may send it as a number
// or a string; both decode to the same ID.
type ID string

// UnmarshalJSON accepts numbers and strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("notification id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp decodes RFC 3339, zone-less ISO local date times (read as UTC)
// and epoch milliseconds.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if data[0] != '"' {
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("notification timestamp: %w", err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("notification timestamp: unsupported format %q", s)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Notification is a server originated message with a read flag and a role
// based visibility filter.
type Notification struct {
	ID             ID             `json:"id"`
	Content        string         `json:"content"`
	IsRead         bool           `json:"isRead"`
	Timestamp      Timestamp      `json:"timestamp"`
	Status         Status         `json:"status,omitempty"`
	RecipientRoles []session.Role `json:"recipientRoles"`
}

// Decode parses one pushed event.
func Decode(payload []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return n, fmt.Errorf("decode notification: %w", err)
	}
	if n.ID == "" {
		return n, fmt.Errorf("decode notification: missing id")
	}
	return n, nil
}

// VisibleTo is true when the filter holds ALL or intersects the principal
// roles. An absent principal sees nothing.
func (n Notification) VisibleTo(p *session.Principal) bool {
	if !p.IsAuthenticated() {
		return false
	}
	filter := session.NewRoleSet(n.RecipientRoles...)
	if filter.Has(session.RoleAll) {
		return true
	}
	return p.HasAnyRole(n.RecipientRoles...)
}

// serverScoped notifications carry no filter; the API already addressed
// them to the requesting principal.
func (n Notification) serverScoped() bool {
	return len(session.NewRoleSet(n.RecipientRoles...)) == 0
}

func (n Notification) clone() Notification {
	n.RecipientRoles = slices.Clone(n.RecipientRoles)
	return n
}

// SortNewestFirst orders by timestamp descending. Ties keep their order.
func SortNewestFirst(items []Notification) {
	slices.SortStableFunc(items, func(a, b Notification) int {
		return b.Timestamp.Compare(a.Timestamp.Time)
	})
}
