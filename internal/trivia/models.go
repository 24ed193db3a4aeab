package trivia

import "time"

type Difficulty string

const (
	Easy   Difficulty = "EASY"
	Medium Difficulty = "MEDIUM"
	Hard   Difficulty = "HARD"
)

func (d Difficulty) Valid() bool {
	return d == Easy || d == Medium || d == Hard
}

type Answer struct {
	ID          string `json:"id"`
	Answer      string `json:"answer"`
	IsCorrect   bool   `json:"isCorrect"`
	Explanation string `json:"explanation"`
	Position    int    `json:"position"`
}

// Question carries its answers including the correctness flags; the same
// payload serves play and review.
type Question struct {
	ID         string     `json:"id"`
	SiteID     string     `json:"siteId"`
	SiteName   string     `json:"siteName"`
	Question   string     `json:"question"`
	Difficulty Difficulty `json:"difficulty"`
	Answers    []Answer   `json:"answers"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type Filter struct {
	SiteID     string
	Difficulty Difficulty
}

type AnswerInput struct {
	Answer      string `json:"answer"`
	IsCorrect   bool   `json:"isCorrect"`
	Explanation string `json:"explanation"`
}

type CreateInput struct {
	SiteID     string        `json:"siteId"`
	Question   string        `json:"question"`
	Difficulty Difficulty    `json:"difficulty"`
	Answers    []AnswerInput `json:"answers"`
}
