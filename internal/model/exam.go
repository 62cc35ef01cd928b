package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents a timed mock test.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Subject         string     `json:"subject"`
	DurationMinutes int        `json:"duration_minutes"`
	Instructions    []string   `json:"instructions"`
	QuestionCount   int        `json:"question_count"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ExamPayload is the Redis-cached payload sent to students (no correct answers).
type ExamPayload struct {
	ExamID       uuid.UUID            `json:"exam_id"`
	Title        string               `json:"title"`
	Subject      string               `json:"subject"`
	Duration     int                  `json:"duration_minutes"`
	Instructions []string             `json:"instructions"`
	Questions    []QuestionForStudent `json:"questions"`
}
