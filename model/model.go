package model

import (
	"fmt"
	"time"
)

// Persona identifies one of the fixed AI judges.
type Persona string

const (
	PersonaHiroyuki Persona = "hiroyuki"
	PersonaDewi     Persona = "dewi"
	PersonaNakao    Persona = "nakao"
)

// Personas lists every judge in canonical order.
var Personas = []Persona{PersonaHiroyuki, PersonaDewi, PersonaNakao}

// Valid reports whether p is one of the fixed personas.
func (p Persona) Valid() bool {
	switch p {
	case PersonaHiroyuki, PersonaDewi, PersonaNakao:
		return true
	}
	return false
}

// Status is the judging state of a post.
type Status string

const (
	StatusJudging Status = "judging"
	StatusScored  Status = "scored"
	StatusFailed  Status = "failed"
)

// ErrorCode classifies why a judgment failed.
type ErrorCode string

const (
	ErrorTimeout          ErrorCode = "timeout"
	ErrorConnectionFailed ErrorCode = "connection_failed"
	ErrorProviderError    ErrorCode = "provider_error"
	ErrorInvalidResponse  ErrorCode = "invalid_response"
	ErrorUnknown          ErrorCode = "unknown_error"
	ErrorThreadException  ErrorCode = "thread_exception"
)

const (
	MinItemScore = 0
	MaxItemScore = 20
)

// Scores holds the five criteria a judge rates, each in [0,20].
type Scores struct {
	Empathy     int `json:"empathy"`
	Humor       int `json:"humor"`
	Brevity     int `json:"brevity"`
	Originality int `json:"originality"`
	Expression  int `json:"expression"`
}

// ScoreKeys are the exact item names a provider response must carry.
var ScoreKeys = []string{"empathy", "humor", "brevity", "originality", "expression"}

// Total returns the sum of the five items.
func (s Scores) Total() int {
	return s.Empathy + s.Humor + s.Brevity + s.Originality + s.Expression
}

// Set assigns the item named key. It reports false for unknown names.
func (s *Scores) Set(key string, v int) bool {
	switch key {
	case "empathy":
		s.Empathy = v
	case "humor":
		s.Humor = v
	case "brevity":
		s.Brevity = v
	case "originality":
		s.Originality = v
	case "expression":
		s.Expression = v
	default:
		return false
	}
	return true
}

// InRange reports whether every item lies in [MinItemScore, MaxItemScore].
func (s Scores) InRange() bool {
	for _, v := range []int{s.Empathy, s.Humor, s.Brevity, s.Originality, s.Expression} {
		if v < MinItemScore || v > MaxItemScore {
			return false
		}
	}
	return true
}

// Post is a user submission and its aggregated judging state.
type Post struct {
	ID           string
	Nickname     string
	Body         string
	Status       Status
	AverageScore *float64
	JudgesCount  int
	ScoreKey     *string
	CreatedAt    int64
	// Version increments on every aggregate write and backs conditional updates.
	Version int64
}

// Clone returns a deep copy so snapshots are not aliased by later mutation.
func (p *Post) Clone() *Post {
	c := *p
	if p.AverageScore != nil {
		v := *p.AverageScore
		c.AverageScore = &v
	}
	if p.ScoreKey != nil {
		v := *p.ScoreKey
		c.ScoreKey = &v
	}
	return &c
}

// Judgment is the persisted outcome of one persona judging one post.
type Judgment struct {
	PostID    string
	Persona   Persona
	Succeeded bool
	ErrorCode *ErrorCode
	Scores    *Scores
	Comment   *string
	JudgedAt  int64
}

// TotalScore returns the item sum for a succeeded judgment, or 0.
func (j *Judgment) TotalScore() int {
	if j == nil || j.Scores == nil {
		return 0
	}
	return j.Scores.Total()
}

// NewSucceededJudgment builds a succeeded judgment stamped with at.
func NewSucceededJudgment(postID string, persona Persona, scores Scores, comment string, at time.Time) *Judgment {
	return &Judgment{
		PostID:    postID,
		Persona:   persona,
		Succeeded: true,
		Scores:    &scores,
		Comment:   &comment,
		JudgedAt:  at.Unix(),
	}
}

// NewFailedJudgment builds a failed judgment stamped with at.
func NewFailedJudgment(postID string, persona Persona, code ErrorCode, at time.Time) *Judgment {
	return &Judgment{
		PostID:    postID,
		Persona:   persona,
		Succeeded: false,
		ErrorCode: &code,
		JudgedAt:  at.Unix(),
	}
}

func (j *Judgment) String() string {
	if j.Succeeded {
		return fmt.Sprintf("%s/%s total=%d", j.PostID, j.Persona, j.TotalScore())
	}
	code := ErrorUnknown
	if j.ErrorCode != nil {
		code = *j.ErrorCode
	}
	return fmt.Sprintf("%s/%s failed=%s", j.PostID, j.Persona, code)
}
