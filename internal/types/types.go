package types

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Rating is a 1-5 book score. Mobile clients send it either as a JSON number
// or as a numeric string, so it carries its own unmarshaller that coerces
// both forms to an integer.
type Rating int

func (r *Rating) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*r = 0
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.New("rating must be a number between 1 and 5")
	}

	n := int(f)
	if float64(n) != f {
		return errors.New("rating must be a whole number")
	}

	*r = Rating(n)
	return nil
}

type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Caption   string    `json:"caption"`
	Rating    int       `json:"rating"`
	Image     string    `json:"image"`
	UserID    string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// FeedAuthor is the slice of the owner record exposed on the public feed.
type FeedAuthor struct {
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage"`
}

// FeedBook is a Book joined with its author for the public feed.
type FeedBook struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Caption   string     `json:"caption"`
	Rating    int        `json:"rating"`
	Image     string     `json:"image"`
	User      FeedAuthor `json:"user"`
	CreatedAt time.Time  `json:"createdAt"`
}

// FeedPage is the paginated response of GET /books.
type FeedPage struct {
	Books       []FeedBook `json:"books"`
	CurrentPage int        `json:"currentPage"`
	TotalBooks  int        `json:"totalBooks"`
	TotalPages  int        `json:"totalPages"`
}

type CreateBookRequest struct {
	Title   string `json:"title" validate:"required"`
	Caption string `json:"caption" validate:"required"`
	Rating  Rating `json:"rating" validate:"required,min=1,max=5"`
	Image   string `json:"image" validate:"required"`
}
