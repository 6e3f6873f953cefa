package model

// Challenge is the text both participants of a session type
type Challenge struct {
	ID        string `json:"id"`
	Seed      uint32 `json:"seed"`
	WordCount int    `json:"wordCount"`
	Content   string `json:"content"`
}
