package domain

import "time"

type Comment struct {
	ID        string    `json:"id"`
	MangaID   string    `json:"mangaId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
