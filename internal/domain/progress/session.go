package progress

import (
	"time"
)

// Session is the ephemeral snapshot of one lesson attempt. It is created at
// lesson start, consumed once by the coin/badge/streak calculators at
// completion, and then discarded; only its effects on the profile persist.
type Session struct {
	// Correct and Wrong count answers in this session.
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`

	// CorrectStreak is the longest run of consecutive correct answers.
	CorrectStreak int `json:"correctStreak"`

	// Mode is the subject/mode, e.g. "maths" or "spelling".
	Mode string `json:"mode"`

	// Selection context.
	Subject string `json:"subject,omitempty"`
	Year    int    `json:"year,omitempty"`
	Topic   string `json:"topic,omitempty"`

	// StartedAt is when the lesson began.
	StartedAt time.Time `json:"startedAt"`
}

// Total returns the number of answered questions.
func (s Session) Total() int {
	return s.Correct + s.Wrong
}

// Accuracy returns the fraction of correct answers, or 0 with no answers.
func (s Session) Accuracy() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(total)
}

// Perfect reports a session with at least one answer and no mistakes.
func (s Session) Perfect() bool {
	return s.Correct > 0 && s.Wrong == 0
}

// SkillKeys returns the mastery keys this session feeds into.
func (s Session) SkillKeys() []string {
	keys := []string{"mode:" + s.Mode}
	if s.Topic != "" {
		keys = append(keys, s.Mode+":"+s.Topic)
	}
	return keys
}
