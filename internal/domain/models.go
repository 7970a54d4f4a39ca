package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ==================== JSONB TYPES ====================

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan JSONB: invalid type")
	}
	return json.Unmarshal(bytes, j)
}

// Vector is an embedding stored as a jsonb array.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal([]float32(v))
}

func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	var raw []byte
	switch t := value.(type) {
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		return errors.New("failed to scan Vector: invalid type")
	}
	return json.Unmarshal(raw, (*[]float32)(v))
}

// ==================== QUEUE ====================

// QueueRecord is one message of the postgres-backed durable queue.
type QueueRecord struct {
	ID           uint      `gorm:"primaryKey"`
	CreatedAt    time.Time `gorm:"index"`
	Queue        string    `gorm:"size:255;not null;index:idx_queue_visible,priority:1"`
	Body         string    `gorm:"type:text;not null"`
	VisibleAt    time.Time `gorm:"not null;index:idx_queue_visible,priority:2"`
	DequeueCount int       `gorm:"not null;default:0"`
	PopReceipt   string    `gorm:"size:64"`
}

func (QueueRecord) TableName() string { return "queue_messages" }

// ==================== MEMORY ====================

// UserMemory is one immutable fact stored about a user.
type UserMemory struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
	UserName          string    `gorm:"size:255;not null;index" json:"user_name"`
	TopicText         string    `gorm:"type:text;not null" json:"topic_text"`
	InsightsText      string    `gorm:"type:text;not null" json:"insights_text"`
	TopicEmbedding    Vector    `gorm:"type:jsonb" json:"-"`
	InsightsEmbedding Vector    `gorm:"type:jsonb" json:"-"`
}

func (UserMemory) TableName() string { return "user_memories" }

// ==================== JOURNAL ====================

type EventStatus string

const (
	EventStatusPending EventStatus = "pending"
	EventStatusSuccess EventStatus = "success"
	EventStatusFailed  EventStatus = "failed"
)

// JournalEntry persists one step of a task loop run.
type JournalEntry struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	RunID    string      `gorm:"size:36;not null;index" json:"run_id"`
	Type     string      `gorm:"size:100;not null;index" json:"type"`
	Status   EventStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	TaskName string      `gorm:"type:text" json:"task_name"`
	Command  string      `gorm:"type:text" json:"command"`
	Output   string      `gorm:"type:text" json:"output"`
	Message  string      `gorm:"type:text" json:"message"`
	Meta     JSONB       `gorm:"type:jsonb" json:"meta"`
}
