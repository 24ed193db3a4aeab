package trivia

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/cache"
	"github.com/Prapti-XR/Prapti-sub000/internal/db"

	"github.com/google/uuid"
)

const listTTL = 300 * time.Second

var (
	ErrNotFound = errors.New("question not found")
	ErrInvalid  = errors.New("invalid question")
)

type Service struct {
	db db.Querier
	rt *cache.ReadThrough
}

func NewService(q db.Querier, rt *cache.ReadThrough) *Service {
	if rt == nil {
		rt = cache.NewReadThrough(nil, nil, nil)
	}
	return &Service{db: q, rt: rt}
}

// List returns questions for published sites, each with its ordered answers.
func (s *Service) List(ctx context.Context, f Filter) ([]Question, string, error) {
	if f.Difficulty != "" && !f.Difficulty.Valid() {
		return nil, "", fmt.Errorf("%w: difficulty must be EASY, MEDIUM or HARD", ErrInvalid)
	}
	key := cache.Key("trivia", "list", f.SiteID, string(f.Difficulty))
	return cache.Fetch(ctx, s.rt, key, listTTL, func(ctx context.Context) ([]Question, error) {
		return s.load(ctx, f)
	})
}

func (s *Service) load(ctx context.Context, f Filter) ([]Question, error) {
	var w db.Where
	w.Add("s.is_published = true")
	w.Eq("q.site_id", f.SiteID)
	w.Eq("q.difficulty", string(f.Difficulty))

	rows, err := s.db.Query(ctx, `
		SELECT q.id, q.site_id, s.name, q.question, q.difficulty, q.created_at,
		       a.id, a.answer, a.is_correct, a.explanation, a.position
		FROM trivia_questions q
		JOIN heritage_sites s ON s.id = q.site_id
		LEFT JOIN trivia_answers a ON a.question_id = q.id
		`+w.SQL()+`
		ORDER BY q.created_at, q.id, a.position
	`, w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []Question{}
	index := map[string]int{}
	for rows.Next() {
		var (
			q           Question
			answerID    *string
			answer      *string
			isCorrect   *bool
			explanation *string
			position    *int
		)
		if err := rows.Scan(&q.ID, &q.SiteID, &q.SiteName, &q.Question, &q.Difficulty, &q.CreatedAt,
			&answerID, &answer, &isCorrect, &explanation, &position); err != nil {
			return nil, err
		}
		i, ok := index[q.ID]
		if !ok {
			q.Answers = []Answer{}
			questions = append(questions, q)
			i = len(questions) - 1
			index[q.ID] = i
		}
		if answerID == nil {
			continue
		}
		a := Answer{ID: *answerID}
		if answer != nil {
			a.Answer = *answer
		}
		if isCorrect != nil {
			a.IsCorrect = *isCorrect
		}
		if explanation != nil {
			a.Explanation = *explanation
		}
		if position != nil {
			a.Position = *position
		}
		questions[i].Answers = append(questions[i].Answers, a)
	}
	return questions, rows.Err()
}

// Create stores a question with at least two answers, at least one of them
// correct.
func (s *Service) Create(ctx context.Context, in CreateInput) (Question, error) {
	in.Question = strings.TrimSpace(in.Question)
	if in.SiteID == "" || in.Question == "" {
		return Question{}, fmt.Errorf("%w: siteId and question required", ErrInvalid)
	}
	if in.Difficulty == "" {
		in.Difficulty = Medium
	}
	if !in.Difficulty.Valid() {
		return Question{}, fmt.Errorf("%w: difficulty must be EASY, MEDIUM or HARD", ErrInvalid)
	}
	if len(in.Answers) < 2 {
		return Question{}, fmt.Errorf("%w: at least two answers required", ErrInvalid)
	}
	correct := 0
	for _, a := range in.Answers {
		if strings.TrimSpace(a.Answer) == "" {
			return Question{}, fmt.Errorf("%w: answers must not be empty", ErrInvalid)
		}
		if a.IsCorrect {
			correct++
		}
	}
	if correct == 0 {
		return Question{}, fmt.Errorf("%w: at least one answer must be correct", ErrInvalid)
	}

	q := Question{ID: uuid.NewString(), SiteID: in.SiteID, Question: in.Question, Difficulty: in.Difficulty}
	err := db.InTx(ctx, s.db, func(tx db.Querier) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO trivia_questions (id, site_id, question, difficulty)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, q.ID, q.SiteID, q.Question, string(q.Difficulty)).Scan(&q.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		for i, ai := range in.Answers {
			a := Answer{ID: uuid.NewString(), Answer: strings.TrimSpace(ai.Answer), IsCorrect: ai.IsCorrect, Explanation: ai.Explanation, Position: i}
			if _, err := tx.Exec(ctx, `
				INSERT INTO trivia_answers (id, question_id, answer, is_correct, explanation, position)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, a.ID, q.ID, a.Answer, a.IsCorrect, a.Explanation, a.Position); err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
			q.Answers = append(q.Answers, a)
		}
		return nil
	})
	if err != nil {
		return Question{}, err
	}
	s.rt.Invalidate("trivia:*", cache.Key("sites", "detail", q.SiteID))
	return q, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	var siteID string
	err := s.db.QueryRow(ctx, `DELETE FROM trivia_questions WHERE id = $1 RETURNING site_id`, id).Scan(&siteID)
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	s.rt.Invalidate("trivia:*", cache.Key("sites", "detail", siteID))
	return nil
}
