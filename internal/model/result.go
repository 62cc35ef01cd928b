package model

// TierStats counts questions within one difficulty tier.
type TierStats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// Feedback is the qualitative message attached to a result.
type Feedback struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

// SummaryChartItem is one slice of the correct/incorrect/unanswered chart.
type SummaryChartItem struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// DifficultyChartRow is one bar of the per-difficulty chart.
type DifficultyChartRow struct {
	Name      string `json:"name"`
	Correct   int    `json:"correct"`
	Incorrect int    `json:"incorrect"`
	Total     int    `json:"total"`
}

// Result is the immutable report computed once at submission time.
type Result struct {
	Score               int                      `json:"score"`
	TotalQuestions      int                      `json:"total_questions"`
	AnsweredQuestions   int                      `json:"answered_questions"`
	CorrectAnswers      int                      `json:"correct_answers"`
	IncorrectAnswers    int                      `json:"incorrect_answers"`
	NotAnswered         int                      `json:"not_answered"`
	TimeSpentSeconds    int                      `json:"time_spent_seconds"`
	DifficultyBreakdown map[Difficulty]TierStats `json:"difficulty_breakdown"`
	Feedback            Feedback                 `json:"feedback"`
}
