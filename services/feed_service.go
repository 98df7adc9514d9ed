package services

import (
	"context"
	"sort"
	"time"

	"github.com/jjant/topmeals-frontend/models"
	"github.com/jjant/topmeals-frontend/session"
)

// BudgetStatus classifies a day's calorie total against the viewer's
// daily target.
type BudgetStatus int

const (
	BudgetUnknown BudgetStatus = iota
	BudgetUnder
	BudgetOver
)

func (b BudgetStatus) String() string {
	switch b {
	case BudgetUnknown:
		return "unknown"
	case BudgetUnder:
		return "under"
	case BudgetOver:
		return "over"
	}
	return "unknown"
}

// DayGroup is one UTC calendar day of meals with its calorie total.
type DayGroup struct {
	Day      time.Time // midnight UTC
	Meals    []models.Meal
	Calories int
}

// GroupByDay buckets meals by UTC calendar day, newest day first. The
// input is not modified; the groups partition it exactly, and meals inside
// a group are ordered newest first.
func GroupByDay(meals []models.Meal) []DayGroup {
	sorted := make([]models.Meal, len(meals))
	copy(sorted, meals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var groups []DayGroup
	for _, m := range sorted {
		day := m.CreatedAt.UTC().Truncate(24 * time.Hour)
		if n := len(groups); n > 0 && groups[n-1].Day.Equal(day) {
			groups[n-1].Meals = append(groups[n-1].Meals, m)
			groups[n-1].Calories += m.Calories
		} else {
			groups = append(groups, DayGroup{
				Day:      day,
				Meals:    []models.Meal{m},
				Calories: m.Calories,
			})
		}
	}
	return groups
}

// Classify compares a day total against the target. No target means
// Unknown; hitting the target exactly is Under, never Over.
func Classify(total int, target *int) BudgetStatus {
	if target == nil {
		return BudgetUnknown
	}
	if total > *target {
		return BudgetOver
	}
	return BudgetUnder
}

// FeedSource selects which listing a feed page is built from.
type FeedSource int

const (
	FeedMine FeedSource = iota
	FeedAll
)

// ClassifiedDay is a DayGroup with its budget classification.
type ClassifiedDay struct {
	DayGroup
	Status BudgetStatus
}

// FeedPage is a display-ready page of the feed.
type FeedPage struct {
	Days      []ClassifiedDay
	Page      int
	PageCount int
}

// FeedService turns paged meal listings into classified day groups using
// the session store's current viewer for credential and calorie target.
type FeedService struct {
	meals   *MealService
	store   *session.Store
	perPage int
}

func NewFeedService(meals *MealService, store *session.Store, perPage int) *FeedService {
	return &FeedService{meals: meals, store: store, perPage: perPage}
}

// Page fetches the requested page and aggregates it. FeedMine requires a
// signed-in viewer; FeedAll works anonymously, classifying every day as
// Unknown when no target is available.
func (s *FeedService) Page(ctx context.Context, source FeedSource, page int) (FeedPage, error) {
	sess := s.store.Current()
	viewer, loggedIn := sess.Viewer()

	var (
		result models.PaginatedResult[models.Meal]
		err    error
	)
	switch source {
	case FeedMine:
		if !loggedIn {
			return FeedPage{}, ErrNotSignedIn
		}
		result, err = s.meals.Feed(ctx, viewer.Cred, page, s.perPage)
	case FeedAll:
		var cred *session.Credential
		if loggedIn {
			cred = &viewer.Cred
		}
		result, err = s.meals.List(ctx, cred, MealFilter{}, page, s.perPage)
	}
	if err != nil {
		return FeedPage{}, err
	}

	var target *int
	if loggedIn {
		t := viewer.CalorieTarget
		target = &t
	}

	groups := GroupByDay(result.Items())
	days := make([]ClassifiedDay, len(groups))
	for i, g := range groups {
		days[i] = ClassifiedDay{DayGroup: g, Status: Classify(g.Calories, target)}
	}
	return FeedPage{Days: days, Page: page, PageCount: result.PageCount()}, nil
}
