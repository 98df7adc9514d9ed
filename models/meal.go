package models

import "time"

// Profile is the public face of a user as returned by the API.
type Profile struct {
	Username  string `json:"username"`
	Bio       string `json:"bio"`
	Image     string `json:"image"`
	Following bool   `json:"following"`
	Role      Role   `json:"role"`
}

// Meal is a single logged meal. Meals are value types: an edit produces a
// new Meal, never an in-place mutation of one already fetched.
type Meal struct {
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Calories    int       `json:"calories"`
	CreatedAt   time.Time `json:"createdAt"`
	Author      Profile   `json:"author"`
}

// Article is the shared-content resource served next to meals.
type Article struct {
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Body           string    `json:"body"`
	TagList        []string  `json:"tagList"`
	CreatedAt      time.Time `json:"createdAt"`
	Favorited      bool      `json:"favorited"`
	FavoritesCount int       `json:"favoritesCount"`
	Author         Profile   `json:"author"`
}
