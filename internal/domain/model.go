package domain

import "time"

// Melding status values. Transitions between any two listed values are
// allowed; the dashboard uses regressions for manual corrections.
const (
	StatusNew      = "new"
	StatusAccepted = "accepted"
	StatusAssigned = "assigned"
	StatusClosed   = "closed"
)

func ValidStatus(status string) bool {
	switch status {
	case StatusNew, StatusAccepted, StatusAssigned, StatusClosed:
		return true
	}
	return false
}

// APIKey is the long-lived credential of a game-server tenant. Only the
// sha256 hash of the key is stored; regenerating overwrites the hash, which
// invalidates the previous key.
type APIKey struct {
	ID        uint      `json:"-"`
	OwnerID   string    `json:"ownerId"`
	ServerID  string    `json:"serverId,omitempty"`
	KeyHash   string    `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Operator is an interactive dashboard account. Operators authenticate with
// email/password and work with short-lived bearer tokens that resolve to the
// operator's owner identity.
type Operator struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	OwnerID      string    `json:"ownerId"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

type OperatorToken struct {
	ID         uint       `json:"-"`
	OperatorID uint       `json:"-"`
	OwnerID    string     `json:"-"`
	Name       string     `json:"name"`
	TokenHash  string     `json:"-"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"-"`
}

// Coordinates is an in-game world position attached to a melding.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Melding is an incident report. OwnerID and Timestamp are assigned server
// side at creation; the record is addressed by its store-generated ID.
type Melding struct {
	ID          uint         `json:"id"`
	OwnerID     string       `json:"ownerId"`
	Type        string       `json:"type"`
	Location    string       `json:"location"`
	PlayerName  string       `json:"playerName"`
	Description string       `json:"description,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Timestamp   int64        `json:"timestamp"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"-"`
	UpdatedAt   time.Time    `json:"-"`
}

// Unit is a live status record. UnitID is client-supplied and unique per
// owner; a resubmission with the same UnitID replaces the record in place.
type Unit struct {
	ID        uint      `json:"-"`
	OwnerID   string    `json:"ownerId"`
	UnitID    string    `json:"id"`
	Type      string    `json:"type"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

type AmberAlert struct {
	ID          uint      `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Timestamp   int64     `json:"timestamp"`
	CreatedAt   time.Time `json:"-"`
}

type NLAlert struct {
	ID        uint      `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Location  string    `json:"location"`
	Timestamp int64     `json:"timestamp"`
	CreatedAt time.Time `json:"-"`
}

// SirenAction is the one-shot payload of the luchtalarm mailbox channel.
type SirenAction struct {
	Action   string `json:"action"`
	DeviceID string `json:"deviceId"`
}

// PostAlarm is the one-shot payload of the posten-alarm mailbox channel.
type PostAlarm struct {
	PostID       string `json:"postId"`
	Trigger      string `json:"trigger"`
	Announcement string `json:"announcement,omitempty"`
	Address      string `json:"address,omitempty"`
	Info         string `json:"info,omitempty"`
	Vehicle      string `json:"vehicle"`
}
