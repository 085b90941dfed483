package domain

// Identity is the authenticated user as persisted by the session store.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Player is a room participant. Uniqueness key is UserID.
type Player struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// QuestionType discriminates how an answer is collected and encoded.
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionText     QuestionType = "text"
)

// Question is immutable once received. The correct answer is never part of it;
// the backend only reveals it in the submit response on a miss.
type Question struct {
	Text      string       `json:"text"`
	Type      QuestionType `json:"type"`
	Options   []string     `json:"options,omitempty"`
	TimeLimit int          `json:"timeLimit"` // seconds, 0 means default
}

// QuizStatus is the room lifecycle phase as reported by the backend.
type QuizStatus string

const (
	StatusLobby     QuizStatus = "lobby"
	StatusActive    QuizStatus = "active"
	StatusCompleted QuizStatus = "completed"
)

// Snapshot is the point-in-time quiz state fetched on room entry,
// superseded by live channel events afterwards.
type Snapshot struct {
	Code         string     `json:"code"`
	Title        string     `json:"title"`
	CreatedBy    string     `json:"createdBy"`
	CreatorName  string     `json:"creatorName"`
	Status       QuizStatus `json:"status"`
	Questions    []Question `json:"questions"`
	Participants []Player   `json:"participants"`
}

// AnswerResult is the backend's verdict on a submitted answer. CurrentScore is
// authoritative; the client never accumulates points locally.
type AnswerResult struct {
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
	CorrectAnswer string `json:"correctAnswer,omitempty"`
	CurrentScore  int    `json:"currentScore"`
}

// LeaderboardEntry is one ranked row of the final standings.
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	UserID     string  `json:"userId"`
	Username   string  `json:"username"`
	Score      int     `json:"score"`
	Percentage float64 `json:"percentage"`
}

// Leaderboard is the ranked results plus quiz metadata, computed server-side.
type Leaderboard struct {
	Code    string             `json:"code"`
	Title   string             `json:"quizTitle"`
	Status  QuizStatus         `json:"quizStatus"`
	Entries []LeaderboardEntry `json:"leaderboard"`
}

// DraftQuestion is a question as authored locally before the quiz exists
// server-side; unlike Question it carries the correct answer.
type DraftQuestion struct {
	Text          string       `yaml:"text" json:"text"`
	Type          QuestionType `yaml:"type" json:"type"`
	Options       []string     `yaml:"options,omitempty" json:"options,omitempty"`
	CorrectAnswer string       `yaml:"correctAnswer" json:"correctAnswer"`
	TimeLimit     int          `yaml:"timeLimit,omitempty" json:"timeLimit,omitempty"`
}

// QuizDraft is the create-quiz request body.
type QuizDraft struct {
	Title     string          `yaml:"title" json:"title"`
	Questions []DraftQuestion `yaml:"questions" json:"questions"`
}
