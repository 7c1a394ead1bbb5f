package sqlite

import (
	"time"

	"github.com/thijsken/gmsnederland/internal/domain"
)

type APIKeyModel struct {
	ID        uint   `gorm:"primaryKey"`
	OwnerID   string `gorm:"uniqueIndex;not null"`
	ServerID  string
	KeyHash   string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (APIKeyModel) TableName() string { return "api_keys" }

type OperatorModel struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	OwnerID      string `gorm:"not null;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (OperatorModel) TableName() string { return "operators" }

type OperatorTokenModel struct {
	ID         uint   `gorm:"primaryKey"`
	OperatorID uint   `gorm:"not null;index"`
	OwnerID    string `gorm:"not null"`
	Name       string `gorm:"not null"`
	TokenHash  string `gorm:"not null;uniqueIndex"`
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

func (OperatorTokenModel) TableName() string { return "operator_tokens" }

type MeldingModel struct {
	ID          uint   `gorm:"primaryKey"`
	OwnerID     string `gorm:"not null;index"`
	Type        string `gorm:"not null"`
	Location    string `gorm:"not null"`
	PlayerName  string `gorm:"not null"`
	Description string
	Coordinates *domain.Coordinates `gorm:"serializer:json"`
	Timestamp   int64               `gorm:"not null;index"`
	Status      string              `gorm:"not null;default:'new'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (MeldingModel) TableName() string { return "meldingen" }

type UnitModel struct {
	ID        uint   `gorm:"primaryKey"`
	OwnerID   string `gorm:"not null;index:idx_owner_unit,unique"`
	UnitID    string `gorm:"not null;index:idx_owner_unit,unique"`
	Type      string `gorm:"not null"`
	Location  string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UnitModel) TableName() string { return "units" }

type AmberAlertModel struct {
	ID          uint   `gorm:"primaryKey"`
	OwnerID     string `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Location    string `gorm:"not null"`
	Description string `gorm:"not null"`
	Timestamp   int64  `gorm:"not null"`
	CreatedAt   time.Time
}

func (AmberAlertModel) TableName() string { return "amber_alerts" }

type NLAlertModel struct {
	ID        uint   `gorm:"primaryKey"`
	OwnerID   string `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Message   string `gorm:"not null"`
	Location  string `gorm:"not null"`
	Timestamp int64  `gorm:"not null"`
	CreatedAt time.Time
}

func (NLAlertModel) TableName() string { return "nl_alerts" }
