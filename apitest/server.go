// Package apitest provides an in-process fake of the topmeals REST API
// for integration tests. It keeps its state in memory and speaks the same
// envelopes and error bodies as the real backend.
package apitest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var jwtSecret = []byte("apitest-secret")

// User is a registered account on the fake server.
type User struct {
	Username         string
	Email            string
	PasswordHash     []byte
	Image            string
	ExpectedCalories int
	Role             string
	Following        map[string]bool
}

// Meal is a stored meal record.
type Meal struct {
	Slug        string
	Author      string
	Description string
	Calories    int
	CreatedAt   time.Time
}

// Article is a stored article record.
type Article struct {
	Slug           string
	Author         string
	Title          string
	Description    string
	Body           string
	TagList        []string
	CreatedAt      time.Time
	FavoritesCount int
}

// Server is the fake API. URL is the base every client call should target.
type Server struct {
	URL string

	mu       sync.Mutex
	users    map[string]*User
	meals    []Meal
	articles []Article
	nextSlug int
}

// New starts the fake server and shuts it down with the test.
func New(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{users: make(map[string]*User)}

	r := gin.New()
	r.POST("/users/login", s.login)
	r.POST("/users", s.register)
	r.GET("/user", s.auth, s.currentUser)
	r.PUT("/user", s.auth, s.updateUser)
	r.GET("/profiles/:username", s.profile)
	r.POST("/profiles/:username/follow", s.auth, s.follow)
	r.DELETE("/profiles/:username/follow", s.auth, s.unfollow)
	r.GET("/meals", s.listMeals)
	r.POST("/meals", s.auth, s.createMeal)
	r.GET("/meals/feed", s.auth, s.mealFeed)
	r.GET("/meals/:slug", s.getMeal)
	r.PUT("/meals/:slug", s.auth, s.updateMeal)
	r.DELETE("/meals/:slug", s.auth, s.deleteMeal)
	r.GET("/articles", s.listArticles)
	r.GET("/articles/feed", s.auth, s.articleFeed)
	r.GET("/tags", s.tags)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	s.URL = ts.URL
	return s
}

// --- fixture helpers ---

// AddUser registers a user directly, bypassing the HTTP surface.
func (s *Server) AddUser(t *testing.T, username, email, password string, calories int) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &User{
		Username:         username,
		Email:            email,
		PasswordHash:     hash,
		ExpectedCalories: calories,
		Role:             "regular",
		Following:        make(map[string]bool),
	}
}

// SetRole changes a fixture user's role.
func (s *Server) SetRole(username, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.users[username]; u != nil {
		u.Role = role
	}
}

// AddMeal stores a meal directly.
func (s *Server) AddMeal(author, slug, description string, calories int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meals = append(s.meals, Meal{
		Slug:        slug,
		Author:      author,
		Description: description,
		Calories:    calories,
		CreatedAt:   at,
	})
}

// AddArticle stores an article directly.
func (s *Server) AddArticle(author, slug, title string, tags []string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles = append(s.articles, Article{
		Slug:      slug,
		Author:    author,
		Title:     title,
		TagList:   tags,
		CreatedAt: at,
	})
}

// --- auth ---

func mintToken(username string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := tok.SignedString(jwtSecret)
	return signed
}

func (s *Server) auth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errors": gin.H{"token": []string{"is missing"}}})
		return
	}
	raw := strings.TrimPrefix(header, "Bearer ")
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errors": gin.H{"token": []string{"is invalid"}}})
		return
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errors": gin.H{"token": []string{"is invalid"}}})
		return
	}
	username, _ := claims["username"].(string)
	s.mu.Lock()
	_, exists := s.users[username]
	s.mu.Unlock()
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errors": gin.H{"token": []string{"is invalid"}}})
		return
	}
	c.Set("username", username)
	c.Next()
}

func (s *Server) viewer(c *gin.Context) *User {
	username := c.GetString("username")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[username]
}

// --- user handlers ---

func userBody(u *User, token string) gin.H {
	var image any
	if u.Image != "" {
		image = u.Image
	}
	return gin.H{"user": gin.H{
		"token":            token,
		"username":         u.Username,
		"image":            image,
		"expectedCalories": u.ExpectedCalories,
	}}
}

func (s *Server) login(c *gin.Context) {
	var input struct {
		User struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		} `json:"user"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"body": []string{"is malformed"}}})
		return
	}

	s.mu.Lock()
	var found *User
	for _, u := range s.users {
		if u.Email == input.User.Email {
			found = u
			break
		}
	}
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.PasswordHash, []byte(input.User.Password)) != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"email or password": []string{"is invalid"}}})
		return
	}
	c.JSON(http.StatusOK, userBody(found, mintToken(found.Username)))
}

func (s *Server) register(c *gin.Context) {
	var input struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		} `json:"user"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"body": []string{"is malformed"}}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.users[input.User.Username]; taken {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"username": []string{"has already been taken"}}})
		return
	}
	for _, u := range s.users {
		if u.Email == input.User.Email {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"email": []string{"has already been taken"}}})
			return
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.User.Password), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"errors": gin.H{"password": []string{"could not be hashed"}}})
		return
	}
	u := &User{
		Username:         input.User.Username,
		Email:            input.User.Email,
		PasswordHash:     hash,
		ExpectedCalories: 2000,
		Role:             "regular",
		Following:        make(map[string]bool),
	}
	s.users[u.Username] = u
	c.JSON(http.StatusCreated, userBody(u, mintToken(u.Username)))
}

func (s *Server) currentUser(c *gin.Context) {
	u := s.viewer(c)
	c.JSON(http.StatusOK, userBody(u, mintToken(u.Username)))
}

func (s *Server) updateUser(c *gin.Context) {
	var input struct {
		User struct {
			Username         *string `json:"username"`
			Email            *string `json:"email"`
			Image            *string `json:"image"`
			ExpectedCalories *int    `json:"expectedCalories"`
		} `json:"user"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"body": []string{"is malformed"}}})
		return
	}
	u := s.viewer(c)
	s.mu.Lock()
	if input.User.Email != nil {
		u.Email = *input.User.Email
	}
	if input.User.Image != nil {
		u.Image = *input.User.Image
	}
	if input.User.ExpectedCalories != nil {
		u.ExpectedCalories = *input.User.ExpectedCalories
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, userBody(u, mintToken(u.Username)))
}

func (s *Server) profileBody(u *User, viewer string) gin.H {
	image := u.Image
	following := false
	if viewer != "" {
		if v := s.users[viewer]; v != nil {
			following = v.Following[u.Username]
		}
	}
	return gin.H{"profile": gin.H{
		"username":  u.Username,
		"bio":       "",
		"image":     image,
		"following": following,
		"role":      u.Role,
	}}
}

func (s *Server) profile(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[c.Param("username")]
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"errors": gin.H{"profile": []string{"not found"}}})
		return
	}
	c.JSON(http.StatusOK, s.profileBody(u, ""))
}

func (s *Server) follow(c *gin.Context) {
	viewer := c.GetString("username")
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.users[c.Param("username")]
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"errors": gin.H{"profile": []string{"not found"}}})
		return
	}
	s.users[viewer].Following[target.Username] = true
	c.JSON(http.StatusOK, s.profileBody(target, viewer))
}

func (s *Server) unfollow(c *gin.Context) {
	viewer := c.GetString("username")
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.users[c.Param("username")]
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"errors": gin.H{"profile": []string{"not found"}}})
		return
	}
	delete(s.users[viewer].Following, target.Username)
	c.JSON(http.StatusOK, s.profileBody(target, viewer))
}

// --- meal handlers ---

func (s *Server) mealBody(m Meal) gin.H {
	author := gin.H{"username": m.Author, "bio": "", "image": "", "following": false, "role": "regular"}
	s.mu.Lock()
	if u := s.users[m.Author]; u != nil {
		author["image"] = u.Image
		author["role"] = u.Role
	}
	s.mu.Unlock()
	return gin.H{
		"slug":        m.Slug,
		"description": m.Description,
		"calories":    m.Calories,
		"createdAt":   m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"author":      author,
	}
}

func paginate(c *gin.Context, total int) (offset, limit int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 || offset > total {
		offset = total
	}
	return offset, limit
}

func (s *Server) selectMeals(author string) []Meal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Meal
	for _, m := range s.meals {
		if author != "" && m.Author != author {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Server) respondMeals(c *gin.Context, matching []Meal) {
	offset, limit := paginate(c, len(matching))
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	page := make([]gin.H, 0, end-offset)
	for _, m := range matching[offset:end] {
		page = append(page, s.mealBody(m))
	}
	c.JSON(http.StatusOK, gin.H{"meals": page, "mealsCount": len(matching)})
}

func (s *Server) listMeals(c *gin.Context) {
	s.respondMeals(c, s.selectMeals(c.Query("author")))
}

func (s *Server) mealFeed(c *gin.Context) {
	s.respondMeals(c, s.selectMeals(c.GetString("username")))
}

func (s *Server) findMeal(slug string) (Meal, int) {
	for i, m := range s.meals {
		if m.Slug == slug {
			return m, i
		}
	}
	return Meal{}, -1
}

func (s *Server) getMeal(c *gin.Context) {
	s.mu.Lock()
	m, i := s.findMeal(c.Param("slug"))
	s.mu.Unlock()
	if i < 0 {
		c.JSON(http.StatusNotFound, gin.H{"errors": gin.H{"meal": []string{"not found"}}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meal": s.mealBody(m)})
}

func (s *Server) createMeal(c *gin.Context) {
	var input struct {
		Meal struct {
			Description string `json:"description"`
			Calories    int    `json:"calories"`
		} `json:"meal"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"body": []string{"is malformed"}}})
		return
	}
	s.mu.Lock()
	s.nextSlug++
	m := Meal{
		Slug:        fmt.Sprintf("meal-%d", s.nextSlug),
		Author:      c.GetString("username"),
		Description: input.Meal.Description,
		Calories:    input.Meal.Calories,
		CreatedAt:   time.Now().UTC(),
	}
	s.meals = append(s.meals, m)
	s.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{"meal": s.mealBody(m)})
}

func (s *Server) updateMeal(c *gin.Context) {
	var input struct {
		Meal struct {
			Description string `json:"description"`
			Calories    int    `json:"calories"`
		} `json:"meal"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"body": []string{"is malformed"}}})
		return
	}
	s.mu.Lock()
	m, i := s.findMeal(c.Param("slug"))
	if i < 0 {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"errors": gin.H{"meal": []string{"not found"}}})
		return
	}
	if m.Author != c.GetString("username") {
		s.mu.Unlock()
		c.JSON(http.StatusForbidden, gin.H{"errors": gin.H{"meal": []string{"is not yours"}}})
		return
	}
	s.meals[i].Description = input.Meal.Description
	s.meals[i].Calories = input.Meal.Calories
	m = s.meals[i]
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"meal": s.mealBody(m)})
}

func (s *Server) deleteMeal(c *gin.Context) {
	s.mu.Lock()
	m, i := s.findMeal(c.Param("slug"))
	if i < 0 {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"errors": gin.H{"meal": []string{"not found"}}})
		return
	}
	viewer := s.users[c.GetString("username")]
	if m.Author != viewer.Username && viewer.Role != "admin" {
		s.mu.Unlock()
		c.JSON(http.StatusForbidden, gin.H{"errors": gin.H{"meal": []string{"is not yours"}}})
		return
	}
	s.meals = append(s.meals[:i], s.meals[i+1:]...)
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

// --- article handlers ---

func (s *Server) articleBody(a Article) gin.H {
	author := gin.H{"username": a.Author, "bio": "", "image": "", "following": false, "role": "regular"}
	tags := a.TagList
	if tags == nil {
		tags = []string{}
	}
	return gin.H{
		"slug":           a.Slug,
		"title":          a.Title,
		"description":    a.Description,
		"body":           a.Body,
		"tagList":        tags,
		"createdAt":      a.CreatedAt.UTC().Format(time.RFC3339Nano),
		"favorited":      false,
		"favoritesCount": a.FavoritesCount,
		"author":         author,
	}
}

func (s *Server) respondArticles(c *gin.Context, matching []Article) {
	offset, limit := paginate(c, len(matching))
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	page := make([]gin.H, 0, end-offset)
	for _, a := range matching[offset:end] {
		page = append(page, s.articleBody(a))
	}
	c.JSON(http.StatusOK, gin.H{"articles": page, "articlesCount": len(matching)})
}

func (s *Server) listArticles(c *gin.Context) {
	author := c.Query("author")
	tag := c.Query("tag")
	s.mu.Lock()
	var matching []Article
	for _, a := range s.articles {
		if author != "" && a.Author != author {
			continue
		}
		if tag != "" && !contains(a.TagList, tag) {
			continue
		}
		matching = append(matching, a)
	}
	s.mu.Unlock()
	s.respondArticles(c, matching)
}

func (s *Server) articleFeed(c *gin.Context) {
	viewer := c.GetString("username")
	s.mu.Lock()
	following := s.users[viewer].Following
	var matching []Article
	for _, a := range s.articles {
		if following[a.Author] {
			matching = append(matching, a)
		}
	}
	s.mu.Unlock()
	s.respondArticles(c, matching)
}

func (s *Server) tags(c *gin.Context) {
	s.mu.Lock()
	seen := make(map[string]bool)
	tags := []string{}
	for _, a := range s.articles {
		for _, t := range a.TagList {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
