package domain

type LookupStatus string

const (
	LookupFound    LookupStatus = "found"
	LookupNotFound LookupStatus = "not_found"
	LookupError    LookupStatus = "error"
)

// UserLookup is the result of an exact user name lookup.
type UserLookup struct {
	Status  LookupStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Records []UserMemory `json:"data,omitempty"`
}

// ScoredMemory is a memory record with its retrieval score.
type ScoredMemory struct {
	Memory UserMemory `json:"memory"`
	Score  float32    `json:"score"`
}

// TopChoice is the best match extracted from a query.
type TopChoice struct {
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	TopicText    string `json:"topic_text"`
	InsightsText string `json:"insights_text"`
}

// MemoryAnswer is the result of a memory query for one user.
type MemoryAnswer struct {
	Status    LookupStatus   `json:"status"`
	Message   string         `json:"message,omitempty"`
	UserInfo  []UserMemory   `json:"user_info,omitempty"`
	Results   []ScoredMemory `json:"results,omitempty"`
	TopChoice *TopChoice     `json:"query_results,omitempty"`
}
