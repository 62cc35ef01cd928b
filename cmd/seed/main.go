package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/eduprep/mocktest-backend/internal/config"
	"github.com/eduprep/mocktest-backend/internal/database"
	"github.com/eduprep/mocktest-backend/internal/logger"
	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/eduprep/mocktest-backend/internal/repository"
	"github.com/eduprep/mocktest-backend/internal/service"
)

// Seeds a demo student account and the sample mathematics mock test, then
// publishes the exam so it shows up in the lobby immediately.
func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Repositories and Services ─────────────────────────────────────
	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	examService := service.NewExamService(examRepo, questionRepo, rdb, log)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Seed Demo Student ===")

	// Name
	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	// Email
	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	// Password
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// ─── Create Student ────────────────────────────────────────────────
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	student := &model.Student{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if err := studentRepo.Create(ctx, student); err != nil {
		log.Fatal().Err(err).Msg("Failed to create student")
	}
	fmt.Printf("Student created: %s <%s> (id %d)\n", student.Name, student.Email, student.ID)

	// ─── Create and Publish Sample Exam ────────────────────────────────
	exam := sampleExam()
	if err := examRepo.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}
	if err := questionRepo.ReplaceForExam(ctx, exam.ID, sampleQuestions(exam.ID)); err != nil {
		log.Fatal().Err(err).Msg("Failed to create questions")
	}
	if err := examService.Publish(ctx, exam.ID); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish exam")
	}

	fmt.Printf("Exam published: %s (%s)\n", exam.Title, exam.ID)
}

func sampleExam() *model.Exam {
	return &model.Exam{
		Title:           "Mathematics Olympiad Mock Test",
		Subject:         "Mathematics",
		DurationMinutes: 60,
		Instructions: []string{
			"Read each question carefully before answering.",
			"Each question has only one correct answer.",
			"There is no negative marking for wrong answers.",
			"You can navigate between questions using the navigation panel.",
			"You can mark questions for review and come back to them later.",
		},
		Status: model.ExamStatusDraft,
	}
}

func sampleQuestions(examID uuid.UUID) []model.Question {
	qs := []model.Question{
		{
			ID:            1,
			Text:          "If x² + y² = 25 and x + y = 7, find the value of x × y.",
			Options:       []string{"10", "12", "24", "49/4"},
			CorrectAnswer: 1,
			Difficulty:    model.DifficultyMedium,
		},
		{
			ID:            2,
			Text:          "What is the sum of the first 100 positive integers?",
			Options:       []string{"5050", "5000", "5150", "10100"},
			CorrectAnswer: 0,
			Difficulty:    model.DifficultyEasy,
		},
		{
			ID:            3,
			Text:          "If the sequence a₁, a₂, a₃, ... is defined by a₁ = 3 and aₙ₊₁ = 2aₙ - 1 for all n ≥ 1, what is a₄?",
			Options:       []string{"11", "17", "23", "31"},
			CorrectAnswer: 2,
			Difficulty:    model.DifficultyMedium,
		},
		{
			ID:            4,
			Text:          "What is the value of cos(30°) × cos(60°) - sin(30°) × sin(60°)?",
			Options:       []string{"0", "0.25", "0.5", "0.75"},
			CorrectAnswer: 0,
			Difficulty:    model.DifficultyMedium,
		},
		{
			ID:            5,
			Text:          "How many 4-digit numbers are there such that the digit sum is exactly 9?",
			Options:       []string{"84", "126", "220", "330"},
			CorrectAnswer: 1,
			Difficulty:    model.DifficultyHard,
		},
		{
			ID:            6,
			Text:          "If the radius of a circle is increased by 50%, by what percentage does the area increase?",
			Options:       []string{"50%", "75%", "100%", "125%"},
			CorrectAnswer: 3,
			Difficulty:    model.DifficultyEasy,
		},
		{
			ID:            7,
			Text:          "What is the sum of all the interior angles of a regular octagon?",
			Options:       []string{"540°", "720°", "1080°", "1440°"},
			CorrectAnswer: 2,
			Difficulty:    model.DifficultyMedium,
		},
		{
			ID:            8,
			Text:          "Solve for x: log₄(x) + log₄(4x) = 3",
			Options:       []string{"2", "4", "8", "16"},
			CorrectAnswer: 0,
			Difficulty:    model.DifficultyHard,
		},
		{
			ID:            9,
			Text:          "How many different ways can 8 people be seated around a circular table?",
			Options:       []string{"40320", "5040", "56", "1"},
			CorrectAnswer: 1,
			Difficulty:    model.DifficultyMedium,
		},
		{
			ID:            10,
			Text:          "If a and b are the roots of the equation x² - 5x + 6 = 0, what is the value of a² + b²?",
			Options:       []string{"13", "25", "30", "37"},
			CorrectAnswer: 1,
			Difficulty:    model.DifficultyMedium,
		},
	}
	for i := range qs {
		qs[i].ExamID = examID
	}
	return qs
}
