package scoring

import (
	"math"

	"github.com/eduprep/mocktest-backend/internal/model"
)

// Score thresholds for feedback tiers. Lower bounds are inclusive.
const (
	excellentThreshold = 80
	goodThreshold      = 60
)

// Evaluate computes the full result report for a frozen session.
//
// selected holds one slot per question; model.Unanswered marks a question the
// student never answered. A nil or short slice is treated as all unanswered.
// An empty question set yields a zero result rather than dividing by zero —
// session construction rejects empty banks, so this is purely defensive.
func Evaluate(questions []model.Question, selected []int, timeSpentSeconds int) *model.Result {
	total := len(questions)

	breakdown := map[model.Difficulty]model.TierStats{
		model.DifficultyEasy:   {},
		model.DifficultyMedium: {},
		model.DifficultyHard:   {},
	}

	answered := 0
	correct := 0
	for i, q := range questions {
		ans := model.Unanswered
		if i < len(selected) {
			ans = selected[i]
		}

		tier := breakdown[q.Difficulty]
		tier.Total++

		if ans != model.Unanswered {
			answered++
		}
		if ans == q.CorrectAnswer {
			correct++
			tier.Correct++
		}

		breakdown[q.Difficulty] = tier
	}

	score := 0
	if total > 0 {
		score = int(math.Round(float64(correct) / float64(total) * 100))
	}

	return &model.Result{
		Score:               score,
		TotalQuestions:      total,
		AnsweredQuestions:   answered,
		CorrectAnswers:      correct,
		IncorrectAnswers:    answered - correct,
		NotAnswered:         total - answered,
		TimeSpentSeconds:    timeSpentSeconds,
		DifficultyBreakdown: breakdown,
		Feedback:            FeedbackForScore(score),
	}
}

// FeedbackForScore returns the qualitative message and suggestions for a
// score percentage. Tiers: >=80 excellent, 60..79 good, <60 needs work.
func FeedbackForScore(score int) model.Feedback {
	switch {
	case score >= excellentThreshold:
		return model.Feedback{
			Message: "Excellent performance! You have a strong grasp of the concepts.",
			Suggestions: []string{
				"Challenge yourself with more difficult problems",
				"Attempt previous year olympiad questions",
				"Consider participating in advanced competitions",
			},
		}
	case score >= goodThreshold:
		return model.Feedback{
			Message: "Good job! You have a decent understanding of most concepts.",
			Suggestions: []string{
				"Focus on the topics where you made mistakes",
				"Practice more medium and hard level problems",
				"Review the theoretical concepts for better clarity",
			},
		}
	default:
		return model.Feedback{
			Message: "You need more practice to improve your performance.",
			Suggestions: []string{
				"Begin with strengthening your foundational concepts",
				"Practice basic problems before moving to advanced ones",
				"Spend more time on each topic and take guided help",
			},
		}
	}
}

// SummaryChart prepares the correct/incorrect/unanswered pie chart slices.
func SummaryChart(r *model.Result) []model.SummaryChartItem {
	return []model.SummaryChartItem{
		{Name: "Correct", Value: r.CorrectAnswers, Color: "#22C55E"},
		{Name: "Incorrect", Value: r.IncorrectAnswers, Color: "#EF4444"},
		{Name: "Not Answered", Value: r.NotAnswered, Color: "#94A3B8"},
	}
}

// DifficultyChart prepares the per-tier bar chart rows in display order.
func DifficultyChart(r *model.Result) []model.DifficultyChartRow {
	rows := make([]model.DifficultyChartRow, 0, 3)
	for _, tier := range []struct {
		name string
		key  model.Difficulty
	}{
		{"Easy", model.DifficultyEasy},
		{"Medium", model.DifficultyMedium},
		{"Hard", model.DifficultyHard},
	} {
		stats := r.DifficultyBreakdown[tier.key]
		rows = append(rows, model.DifficultyChartRow{
			Name:      tier.name,
			Correct:   stats.Correct,
			Incorrect: stats.Total - stats.Correct,
			Total:     stats.Total,
		})
	}
	return rows
}
