package model

type Feedback struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Content string `json:"content"`
	Ctime   int64  `json:"ctime"`
}
