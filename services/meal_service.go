package services

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jjant/topmeals-frontend/models"
	"github.com/jjant/topmeals-frontend/session"
)

// MealService covers the meal, article and tag endpoints. List endpoints
// decode the { <resource>Count, <resource> } envelope into a
// PaginatedResult.
type MealService struct {
	client *Client
}

func NewMealService(c *Client) *MealService {
	return &MealService{client: c}
}

// MealFilter narrows GET /meals. Every set field is applied to the query.
type MealFilter struct {
	Author string
	Tag    string
}

// MealDraft is the editable part of a meal for create and update.
type MealDraft struct {
	Description string `json:"description"`
	Calories    int    `json:"calories"`
}

type mealsEnvelope struct {
	Meals      []models.Meal `json:"meals"`
	MealsCount int           `json:"mealsCount"`
}

type mealEnvelope struct {
	Meal models.Meal `json:"meal"`
}

// List fetches one page of the global meal listing. cred may be nil for
// anonymous browsing.
func (s *MealService) List(ctx context.Context, cred *session.Credential, filter MealFilter, page, perPage int) (models.PaginatedResult[models.Meal], error) {
	q := models.PageQuery(page, perPage)
	if filter.Author != "" {
		q.Set("author", filter.Author)
	}
	if filter.Tag != "" {
		q.Set("tag", filter.Tag)
	}
	var resp mealsEnvelope
	if err := s.client.Do(ctx, http.MethodGet, "/meals", q, cred, nil, &resp); err != nil {
		return models.PaginatedResult[models.Meal]{}, err
	}
	return models.FromServerPage(resp.MealsCount, perPage, resp.Meals), nil
}

// Feed fetches one page of the viewer's own meals.
func (s *MealService) Feed(ctx context.Context, cred session.Credential, page, perPage int) (models.PaginatedResult[models.Meal], error) {
	q := models.PageQuery(page, perPage)
	var resp mealsEnvelope
	if err := s.client.Do(ctx, http.MethodGet, "/meals/feed", q, &cred, nil, &resp); err != nil {
		return models.PaginatedResult[models.Meal]{}, err
	}
	return models.FromServerPage(resp.MealsCount, perPage, resp.Meals), nil
}

func (s *MealService) Get(ctx context.Context, cred *session.Credential, slug string) (models.Meal, error) {
	var resp mealEnvelope
	err := s.client.Do(ctx, http.MethodGet, "/meals/"+url.PathEscape(slug), nil, cred, nil, &resp)
	return resp.Meal, err
}

func (s *MealService) Create(ctx context.Context, cred session.Credential, draft MealDraft) (models.Meal, error) {
	var resp mealEnvelope
	body := map[string]any{"meal": draft}
	err := s.client.Do(ctx, http.MethodPost, "/meals", nil, &cred, body, &resp)
	return resp.Meal, err
}

func (s *MealService) Update(ctx context.Context, cred session.Credential, slug string, draft MealDraft) (models.Meal, error) {
	var resp mealEnvelope
	body := map[string]any{"meal": draft}
	err := s.client.Do(ctx, http.MethodPut, "/meals/"+url.PathEscape(slug), nil, &cred, body, &resp)
	return resp.Meal, err
}

func (s *MealService) Delete(ctx context.Context, cred session.Credential, slug string) error {
	return s.client.Do(ctx, http.MethodDelete, "/meals/"+url.PathEscape(slug), nil, &cred, nil, nil)
}

// ArticleFilter narrows GET /articles.
type ArticleFilter struct {
	Author    string
	Tag       string
	Favorited string
}

type articlesEnvelope struct {
	Articles      []models.Article `json:"articles"`
	ArticlesCount int              `json:"articlesCount"`
}

func (s *MealService) Articles(ctx context.Context, cred *session.Credential, filter ArticleFilter, page, perPage int) (models.PaginatedResult[models.Article], error) {
	q := models.PageQuery(page, perPage)
	if filter.Author != "" {
		q.Set("author", filter.Author)
	}
	if filter.Tag != "" {
		q.Set("tag", filter.Tag)
	}
	if filter.Favorited != "" {
		q.Set("favorited", filter.Favorited)
	}
	var resp articlesEnvelope
	if err := s.client.Do(ctx, http.MethodGet, "/articles", q, cred, nil, &resp); err != nil {
		return models.PaginatedResult[models.Article]{}, err
	}
	return models.FromServerPage(resp.ArticlesCount, perPage, resp.Articles), nil
}

func (s *MealService) ArticleFeed(ctx context.Context, cred session.Credential, page, perPage int) (models.PaginatedResult[models.Article], error) {
	q := models.PageQuery(page, perPage)
	var resp articlesEnvelope
	if err := s.client.Do(ctx, http.MethodGet, "/articles/feed", q, &cred, nil, &resp); err != nil {
		return models.PaginatedResult[models.Article]{}, err
	}
	return models.FromServerPage(resp.ArticlesCount, perPage, resp.Articles), nil
}

func (s *MealService) Tags(ctx context.Context) ([]string, error) {
	var resp struct {
		Tags []string `json:"tags"`
	}
	err := s.client.Do(ctx, http.MethodGet, "/tags", nil, nil, nil, &resp)
	return resp.Tags, err
}
