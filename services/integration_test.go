package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jjant/topmeals-frontend/apitest"
	"github.com/jjant/topmeals-frontend/models"
	"github.com/jjant/topmeals-frontend/session"
)

func newStack(t *testing.T) (*apitest.Server, *Client, *UserService, *MealService) {
	t.Helper()
	srv := apitest.New(t)
	client := NewClient(srv.URL, 5*time.Second)
	return srv, client, NewUserService(client), NewMealService(client)
}

func newSessionStore(t *testing.T) *session.Store {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	store, err := session.NewStore(ctx, session.NewMemoryStorage())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestLoginAndPersistedRoundTrip(t *testing.T) {
	srv, _, users, _ := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "hunter2", 1800)

	viewer, err := users.Login(context.Background(), "bob@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if viewer.Cred.Username() != "bob" {
		t.Errorf("username = %q, want bob", viewer.Cred.Username())
	}
	if viewer.CalorieTarget != 1800 {
		t.Errorf("calorie target = %d, want 1800", viewer.CalorieTarget)
	}
	if viewer.Avatar != session.DefaultAvatar {
		t.Errorf("avatar = %q, want default", viewer.Avatar)
	}

	store := newSessionStore(t)
	if err := store.SignIn(viewer); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	restored, ok := store.Current().Viewer()
	if !ok || restored != viewer {
		t.Fatalf("restored viewer %+v != %+v", restored, viewer)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv, _, users, _ := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "hunter2", 1800)

	_, err := users.Login(context.Background(), "bob@example.com", "wrong")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %T, want *StatusError", err)
	}
	if se.Code != http.StatusUnprocessableEntity {
		t.Errorf("Code = %d, want 422", se.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv, _, users, _ := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "hunter2", 1800)

	_, err := users.Register(context.Background(), "bob2", "bob@example.com", "pw")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %T, want *StatusError", err)
	}
	if len(se.Messages) != 1 || se.Messages[0] != "email has already been taken" {
		t.Errorf("Messages = %v", se.Messages)
	}
}

func TestSettingsUpdateChangesCalorieTarget(t *testing.T) {
	srv, _, users, _ := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "hunter2", 1800)

	viewer, err := users.Login(context.Background(), "bob@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	target := 1500
	updated, err := users.Update(context.Background(), viewer.Cred, UserUpdate{ExpectedCalories: &target})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.CalorieTarget != 1500 {
		t.Errorf("calorie target = %d, want 1500", updated.CalorieTarget)
	}

	fetched, err := users.Current(context.Background(), viewer.Cred)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if fetched.CalorieTarget != 1500 {
		t.Errorf("refetched target = %d, want 1500", fetched.CalorieTarget)
	}
}

func TestMealCRUDAndPagination(t *testing.T) {
	srv, _, users, meals := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "hunter2", 1800)
	viewer, err := users.Login(context.Background(), "bob@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	created, err := meals.Create(context.Background(), viewer.Cred, MealDraft{Description: "toast", Calories: 250})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Slug == "" || created.Author.Username != "bob" {
		t.Fatalf("created = %+v", created)
	}

	updated, err := meals.Update(context.Background(), viewer.Cred, created.Slug, MealDraft{Description: "toast with jam", Calories: 320})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Calories != 320 {
		t.Errorf("updated calories = %d, want 320", updated.Calories)
	}

	got, err := meals.Get(context.Background(), &viewer.Cred, created.Slug)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != "toast with jam" {
		t.Errorf("fetched description = %q", got.Description)
	}

	// 25 matching meals at 10 per page make 3 pages.
	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		srv.AddMeal("bob", "extra-"+string(rune('a'+i)), "extra", 100, base.Add(time.Duration(i)*time.Hour))
	}
	page, err := meals.Feed(context.Background(), viewer.Cred, 1, 10)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if page.TotalCount() != 25 {
		t.Errorf("TotalCount = %d, want 25", page.TotalCount())
	}
	if page.PageCount() != 3 {
		t.Errorf("PageCount = %d, want 3", page.PageCount())
	}
	if len(page.Items()) != 10 {
		t.Errorf("page holds %d meals, want 10", len(page.Items()))
	}

	if err := meals.Delete(context.Background(), viewer.Cred, created.Slug); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := meals.Get(context.Background(), &viewer.Cred, created.Slug); err == nil {
		t.Fatal("deleted meal still fetchable")
	}
}

func TestMealListAuthorFilter(t *testing.T) {
	srv, _, _, meals := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "pw", 1800)
	srv.AddUser(t, "alice", "alice@example.com", "pw", 2200)
	at := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	srv.AddMeal("bob", "bob-1", "eggs", 300, at)
	srv.AddMeal("alice", "alice-1", "salad", 200, at)

	page, err := meals.List(context.Background(), nil, MealFilter{Author: "alice"}, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalCount() != 1 || page.Items()[0].Slug != "alice-1" {
		t.Errorf("filtered page = %+v", page.Items())
	}
}

func TestFeedServiceClassifiesDays(t *testing.T) {
	srv, _, users, meals := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "hunter2", 1200)

	day1 := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	srv.AddMeal("bob", "m1", "big lunch", 1000, day1.Add(10*time.Hour))
	srv.AddMeal("bob", "m2", "dinner", 500, day1.Add(20*time.Hour))
	srv.AddMeal("bob", "m3", "snack", 300, day2.Add(8*time.Hour))

	viewer, err := users.Login(context.Background(), "bob@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	store := newSessionStore(t)
	if err := store.SignIn(viewer); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	feed := NewFeedService(meals, store, 10)
	page, err := feed.Page(context.Background(), FeedMine, 1)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page.Days) != 2 {
		t.Fatalf("got %d day groups, want 2", len(page.Days))
	}

	if !page.Days[0].Day.Equal(day2) {
		t.Errorf("first group day = %v, want %v", page.Days[0].Day, day2)
	}
	if page.Days[0].Calories != 300 || page.Days[0].Status != BudgetUnder {
		t.Errorf("day2 = %d cal %v, want 300 under", page.Days[0].Calories, page.Days[0].Status)
	}
	if page.Days[1].Calories != 1500 || page.Days[1].Status != BudgetOver {
		t.Errorf("day1 = %d cal %v, want 1500 over", page.Days[1].Calories, page.Days[1].Status)
	}
}

func TestFeedServiceAnonymous(t *testing.T) {
	srv, _, _, meals := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "pw", 1200)
	srv.AddMeal("bob", "m1", "lunch", 5000, time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC))

	store := newSessionStore(t)
	feed := NewFeedService(meals, store, 10)

	if _, err := feed.Page(context.Background(), FeedMine, 1); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("FeedMine anonymous err = %v, want ErrNotSignedIn", err)
	}

	page, err := feed.Page(context.Background(), FeedAll, 1)
	if err != nil {
		t.Fatalf("FeedAll: %v", err)
	}
	for _, d := range page.Days {
		if d.Status != BudgetUnknown {
			t.Errorf("anonymous day classified %v, want unknown", d.Status)
		}
	}
}

func TestProfileFollowUnfollow(t *testing.T) {
	srv, _, users, _ := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "pw", 1800)
	srv.AddUser(t, "alice", "alice@example.com", "pw", 2200)
	srv.SetRole("alice", "manager")

	viewer, err := users.Login(context.Background(), "bob@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	p, err := users.Follow(context.Background(), viewer.Cred, "alice")
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if !p.Following {
		t.Error("expected following=true after follow")
	}
	if p.Role != models.RoleManager {
		t.Errorf("role = %v, want manager", p.Role)
	}

	p, err = users.Unfollow(context.Background(), viewer.Cred, "alice")
	if err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	if p.Following {
		t.Error("expected following=false after unfollow")
	}
}

func TestArticlesAndTags(t *testing.T) {
	srv, _, users, meals := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "pw", 1800)
	srv.AddUser(t, "alice", "alice@example.com", "pw", 2200)
	at := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	srv.AddArticle("alice", "go-tips", "Go tips", []string{"go", "tips"}, at)
	srv.AddArticle("bob", "meal-prep", "Meal prep", []string{"food"}, at)

	page, err := meals.Articles(context.Background(), nil, ArticleFilter{Tag: "go"}, 1, 10)
	if err != nil {
		t.Fatalf("Articles: %v", err)
	}
	if page.TotalCount() != 1 || page.Items()[0].Slug != "go-tips" {
		t.Errorf("tag filter returned %+v", page.Items())
	}

	viewer, err := users.Login(context.Background(), "bob@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := users.Follow(context.Background(), viewer.Cred, "alice"); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	feedPage, err := meals.ArticleFeed(context.Background(), viewer.Cred, 1, 10)
	if err != nil {
		t.Fatalf("ArticleFeed: %v", err)
	}
	if feedPage.TotalCount() != 1 || feedPage.Items()[0].Author.Username != "alice" {
		t.Errorf("article feed = %+v", feedPage.Items())
	}

	tags, err := meals.Tags(context.Background())
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(tags) != 3 {
		t.Errorf("tags = %v, want 3 distinct", tags)
	}
}

func TestUnauthorizedRequestIsRejected(t *testing.T) {
	srv, client, _, _ := newStack(t)
	srv.AddUser(t, "bob", "bob@example.com", "pw", 1800)

	err := client.Do(context.Background(), http.MethodGet, "/meals/feed", nil, nil, nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %T, want *StatusError", err)
	}
	if se.Code != http.StatusUnauthorized {
		t.Errorf("Code = %d, want 401", se.Code)
	}
}
