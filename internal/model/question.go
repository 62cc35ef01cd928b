package model

import (
	"github.com/google/uuid"
)

// Difficulty is a static tag on each question used for reporting aggregation.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Unanswered marks an answer slot with no selection.
const Unanswered = -1

// Question represents a single exam question.
type Question struct {
	ID            int        `json:"id"`
	ExamID        uuid.UUID  `json:"exam_id"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correct_answer"`
	Difficulty    Difficulty `json:"difficulty"`
	OrderNum      int        `json:"order_num"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID         int        `json:"id"`
	Text       string     `json:"text"`
	Options    []string   `json:"options"`
	Difficulty Difficulty `json:"difficulty"`
	OrderNum   int        `json:"order_num"`
}

// ForStudent strips the correct answer from a question.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:         q.ID,
		Text:       q.Text,
		Options:    q.Options,
		Difficulty: q.Difficulty,
		OrderNum:   q.OrderNum,
	}
}
