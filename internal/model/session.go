package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted  SessionStatus = "SUBMITTED"
)

// ExamSession represents a student's attempt at a timed mock test.
type ExamSession struct {
	ID         uuid.UUID     `json:"id"`
	ExamID     uuid.UUID     `json:"exam_id"`
	StudentID  int           `json:"student_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Status     SessionStatus `json:"status"`
	Result     *Result       `json:"result,omitempty"`
}

// SessionState is the live view of an in-progress session, returned on
// page reload so the client can restore answered questions and the clock.
type SessionState struct {
	SessionID       uuid.UUID     `json:"session_id"`
	ExamID          uuid.UUID     `json:"exam_id"`
	CurrentQuestion int           `json:"current_question"`
	SelectedAnswers []int         `json:"selected_answers"`
	MarkedForReview []bool        `json:"marked_for_review"`
	TimeLeft        int           `json:"time_left"`
	AnsweredCount   int           `json:"answered_count"`
	Status          SessionStatus `json:"status"`
}

// SelectAnswerRequest is the payload for answering the current question.
type SelectAnswerRequest struct {
	OptionIndex *int `json:"option_index" binding:"required,min=0,max=3"`
}

// GoToQuestionRequest is the payload for a palette jump.
type GoToQuestionRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}
