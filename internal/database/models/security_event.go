package models

import "github.com/google/uuid"

// SecurityEvent is an append-only record of an authentication attempt or
// abuse signal.
type SecurityEvent struct {
	Base
	Type         string     `gorm:"index;not null" json:"type"`
	Severity     string     `gorm:"not null" json:"severity"`
	IP           string     `gorm:"index" json:"ip"`
	Strategy     string     `json:"strategy,omitempty"`
	Organization string     `gorm:"index" json:"organization,omitempty"`
	Target       string     `json:"target,omitempty"`
	UserID       *uuid.UUID `gorm:"type:uuid" json:"userId,omitempty"`
	Success      bool       `json:"success"`
	Reason       string     `json:"reason,omitempty"`
	Metadata     string     `gorm:"type:text" json:"metadata,omitempty"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}
