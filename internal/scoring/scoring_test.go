package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduprep/mocktest-backend/internal/model"
)

func bank() []model.Question {
	return []model.Question{
		{ID: 1, CorrectAnswer: 1, Difficulty: model.DifficultyEasy, Options: []string{"a", "b", "c", "d"}},
		{ID: 2, CorrectAnswer: 0, Difficulty: model.DifficultyEasy, Options: []string{"a", "b", "c", "d"}},
		{ID: 3, CorrectAnswer: 2, Difficulty: model.DifficultyMedium, Options: []string{"a", "b", "c", "d"}},
		{ID: 4, CorrectAnswer: 0, Difficulty: model.DifficultyMedium, Options: []string{"a", "b", "c", "d"}},
		{ID: 5, CorrectAnswer: 1, Difficulty: model.DifficultyMedium, Options: []string{"a", "b", "c", "d"}},
		{ID: 6, CorrectAnswer: 3, Difficulty: model.DifficultyMedium, Options: []string{"a", "b", "c", "d"}},
		{ID: 7, CorrectAnswer: 2, Difficulty: model.DifficultyHard, Options: []string{"a", "b", "c", "d"}},
		{ID: 8, CorrectAnswer: 0, Difficulty: model.DifficultyHard, Options: []string{"a", "b", "c", "d"}},
		{ID: 9, CorrectAnswer: 1, Difficulty: model.DifficultyHard, Options: []string{"a", "b", "c", "d"}},
		{ID: 10, CorrectAnswer: 1, Difficulty: model.DifficultyHard, Options: []string{"a", "b", "c", "d"}},
	}
}

func TestEvaluateCounts(t *testing.T) {
	questions := bank()

	// 5 correct, 2 wrong, 3 unanswered.
	selected := []int{
		1, 0, 2, 0, 1, // correct
		0, 1, // wrong
		model.Unanswered, model.Unanswered, model.Unanswered,
	}

	r := Evaluate(questions, selected, 1800)

	assert.Equal(t, 50, r.Score)
	assert.Equal(t, 10, r.TotalQuestions)
	assert.Equal(t, 7, r.AnsweredQuestions)
	assert.Equal(t, 5, r.CorrectAnswers)
	assert.Equal(t, 2, r.IncorrectAnswers)
	assert.Equal(t, 3, r.NotAnswered)
	assert.Equal(t, 1800, r.TimeSpentSeconds)
}

func TestEvaluateDifficultyBreakdown(t *testing.T) {
	questions := bank()
	selected := []int{
		1, 0, // both easy correct
		2, 0, 3, 0, // 2 of 4 medium correct
		model.Unanswered, model.Unanswered, model.Unanswered, model.Unanswered,
	}

	r := Evaluate(questions, selected, 60)

	assert.Equal(t, model.TierStats{Total: 2, Correct: 2}, r.DifficultyBreakdown[model.DifficultyEasy])
	assert.Equal(t, model.TierStats{Total: 4, Correct: 2}, r.DifficultyBreakdown[model.DifficultyMedium])
	assert.Equal(t, model.TierStats{Total: 4, Correct: 0}, r.DifficultyBreakdown[model.DifficultyHard])
}

func TestEvaluateScoreRounding(t *testing.T) {
	// 1 of 3 correct: 33.33.. rounds down to 33; 2 of 3: 66.66.. rounds up to 67.
	questions := bank()[:3]

	r := Evaluate(questions, []int{1, 3, 3}, 10)
	assert.Equal(t, 33, r.Score)

	r = Evaluate(questions, []int{1, 0, 3}, 10)
	assert.Equal(t, 67, r.Score)
}

func TestEvaluateShortOrNilSelection(t *testing.T) {
	questions := bank()

	r := Evaluate(questions, nil, 0)
	assert.Equal(t, 0, r.Score)
	assert.Equal(t, 10, r.NotAnswered)

	r = Evaluate(questions, []int{1}, 0)
	assert.Equal(t, 10, r.Score)
	assert.Equal(t, 1, r.AnsweredQuestions)
	assert.Equal(t, 9, r.NotAnswered)
}

func TestEvaluateEmptyBank(t *testing.T) {
	r := Evaluate(nil, nil, 0)

	assert.Equal(t, 0, r.Score)
	assert.Equal(t, 0, r.TotalQuestions)
	assert.Equal(t, "You need more practice to improve your performance.", r.Feedback.Message)
}

func TestFeedbackTierBoundaries(t *testing.T) {
	cases := []struct {
		score   int
		message string
	}{
		{100, "Excellent performance! You have a strong grasp of the concepts."},
		{80, "Excellent performance! You have a strong grasp of the concepts."},
		{79, "Good job! You have a decent understanding of most concepts."},
		{60, "Good job! You have a decent understanding of most concepts."},
		{59, "You need more practice to improve your performance."},
		{0, "You need more practice to improve your performance."},
	}

	for _, tc := range cases {
		fb := FeedbackForScore(tc.score)
		assert.Equal(t, tc.message, fb.Message, "score %d", tc.score)
		assert.Len(t, fb.Suggestions, 3, "score %d", tc.score)
	}
}

func TestSummaryChart(t *testing.T) {
	r := Evaluate(bank(), []int{1, 0, 2, 0, 1, 0, 1, model.Unanswered, model.Unanswered, model.Unanswered}, 0)

	chart := SummaryChart(r)
	require.Len(t, chart, 3)

	assert.Equal(t, model.SummaryChartItem{Name: "Correct", Value: 5, Color: "#22C55E"}, chart[0])
	assert.Equal(t, model.SummaryChartItem{Name: "Incorrect", Value: 2, Color: "#EF4444"}, chart[1])
	assert.Equal(t, model.SummaryChartItem{Name: "Not Answered", Value: 3, Color: "#94A3B8"}, chart[2])
}

func TestDifficultyChart(t *testing.T) {
	r := Evaluate(bank(), []int{1, 0, 2, 0, 3, 0, model.Unanswered, model.Unanswered, model.Unanswered, model.Unanswered}, 0)

	rows := DifficultyChart(r)
	require.Len(t, rows, 3)

	assert.Equal(t, model.DifficultyChartRow{Name: "Easy", Correct: 2, Incorrect: 0, Total: 2}, rows[0])
	assert.Equal(t, model.DifficultyChartRow{Name: "Medium", Correct: 2, Incorrect: 2, Total: 4}, rows[1])
	assert.Equal(t, model.DifficultyChartRow{Name: "Hard", Correct: 0, Incorrect: 4, Total: 4}, rows[2])
}
