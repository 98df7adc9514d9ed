package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jjant/topmeals-frontend/config"
	"github.com/jjant/topmeals-frontend/models"
	"github.com/jjant/topmeals-frontend/services"
	"github.com/jjant/topmeals-frontend/session"
)

const usage = `usage: topmeals <command> [flags]

commands:
  login    -email <addr> -password <pw>
  register -username <name> -email <addr> -password <pw>
  logout
  whoami
  feed     [-page N] [-all]
  meals    [-author <name>] [-tag <tag>] [-page N]
  add      -desc <text> -cal <n>
  rm       <slug>
`

type app struct {
	cfg   config.Config
	store *session.Store
	users *services.UserService
	meals *services.MealService
	feed  *services.FeedService
}

func main() {
	log.SetFlags(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := session.NewStore(ctx, session.NewFileStorage(cfg.SessionFile))
	if err != nil {
		log.Fatalf("session: %v", err)
	}

	client := services.NewClient(cfg.BaseURL, cfg.HTTPTimeout)
	a := &app{
		cfg:   cfg,
		store: store,
		users: services.NewUserService(client),
		meals: services.NewMealService(client),
	}
	a.feed = services.NewFeedService(a.meals, store, cfg.PageSize)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var cmdErr error
	switch os.Args[1] {
	case "login":
		cmdErr = a.login(ctx, os.Args[2:])
	case "register":
		cmdErr = a.register(ctx, os.Args[2:])
	case "logout":
		cmdErr = a.logout()
	case "whoami":
		cmdErr = a.whoami()
	case "feed":
		cmdErr = a.showFeed(ctx, os.Args[2:])
	case "meals":
		cmdErr = a.listMeals(ctx, os.Args[2:])
	case "add":
		cmdErr = a.addMeal(ctx, os.Args[2:])
	case "rm":
		cmdErr = a.removeMeal(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if cmdErr != nil {
		log.Fatalf("%v", reportable(cmdErr))
	}
}

// reportable maps the error taxonomy onto user-facing messages.
func reportable(err error) string {
	var se *services.StatusError
	switch {
	case errors.Is(err, services.ErrNotSignedIn):
		return "not signed in; run: topmeals login"
	case errors.Is(err, services.ErrTimeout), errors.Is(err, services.ErrNetwork):
		return "could not reach the server, please try again"
	case errors.As(err, &se):
		msg := ""
		for i, m := range se.Messages {
			if i > 0 {
				msg += "; "
			}
			msg += m
		}
		return msg
	default:
		return err.Error()
	}
}

func (a *app) viewer() (session.Viewer, error) {
	v, ok := a.store.Current().Viewer()
	if !ok {
		return session.Viewer{}, services.ErrNotSignedIn
	}
	return v, nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)
	if *email == "" || *password == "" {
		return errors.New("login needs -email and -password")
	}

	v, err := a.users.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := a.store.SignIn(v); err != nil {
		return err
	}
	fmt.Printf("signed in as %s (daily target %d cal)\n", v.Cred.Username(), v.CalorieTarget)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)
	if *username == "" || *email == "" || *password == "" {
		return errors.New("register needs -username, -email and -password")
	}

	v, err := a.users.Register(ctx, *username, *email, *password)
	if err != nil {
		return err
	}
	if err := a.store.SignIn(v); err != nil {
		return err
	}
	fmt.Printf("registered and signed in as %s\n", v.Cred.Username())
	return nil
}

func (a *app) logout() error {
	if err := a.store.SignOut(); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

func (a *app) whoami() error {
	v, err := a.viewer()
	if err != nil {
		return err
	}
	fmt.Printf("%s (daily target %d cal)\n", v.Cred.Username(), v.CalorieTarget)
	return nil
}

func (a *app) showFeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	page := fs.Int("page", 1, "page number")
	all := fs.Bool("all", false, "show everyone's meals instead of mine")
	fs.Parse(args)

	source := services.FeedMine
	if *all {
		source = services.FeedAll
	}

	done := make(chan error, 1)
	slot := services.NewSlot(a.cfg.SlowThreshold, func(st services.LoadState[services.FeedPage]) {
		switch st.Kind {
		case services.LoadLoading:
		case services.LoadSlow:
			fmt.Println("still loading...")
		case services.LoadLoaded:
			printFeed(st.Value)
			done <- nil
		case services.LoadFailed:
			done <- st.Err
		}
	})
	slot.Fetch(ctx, func(ctx context.Context) (services.FeedPage, error) {
		return a.feed.Page(ctx, source, *page)
	})
	return <-done
}

func printFeed(page services.FeedPage) {
	if len(page.Days) == 0 {
		fmt.Println("no meals yet")
		return
	}
	for _, day := range page.Days {
		fmt.Printf("%s  %d cal  [%s]\n", day.Day.Format("2006-01-02"), day.Calories, day.Status)
		for _, m := range day.Meals {
			fmt.Printf("  %s  %4d cal  %s (%s)\n",
				m.CreatedAt.UTC().Format("15:04"), m.Calories, m.Description, m.Author.Username)
		}
	}
	fmt.Printf("page %d of %d\n", page.Page, page.PageCount)
}

func (a *app) listMeals(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("meals", flag.ExitOnError)
	author := fs.String("author", "", "filter by author")
	tag := fs.String("tag", "", "filter by tag")
	page := fs.Int("page", 1, "page number")
	fs.Parse(args)

	var cred *session.Credential
	if v, ok := a.store.Current().Viewer(); ok {
		cred = &v.Cred
	}
	result, err := a.meals.List(ctx, cred, services.MealFilter{Author: *author, Tag: *tag}, *page, a.cfg.PageSize)
	if err != nil {
		return err
	}
	for _, m := range result.Items() {
		fmt.Printf("%-20s %4d cal  %s  %s\n", m.Slug, m.Calories, m.CreatedAt.UTC().Format("2006-01-02 15:04"), m.Description)
	}
	fmt.Printf("page %d of %d (%d meals)\n", *page, result.PageCount(), result.TotalCount())
	return nil
}

func (a *app) addMeal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	desc := fs.String("desc", "", "what was eaten")
	cal := fs.Int("cal", 0, "calorie count")
	fs.Parse(args)
	if *desc == "" {
		return errors.New("add needs -desc")
	}

	v, err := a.viewer()
	if err != nil {
		return err
	}
	m, err := a.meals.Create(ctx, v.Cred, services.MealDraft{Description: *desc, Calories: *cal})
	if err != nil {
		return err
	}
	fmt.Printf("added %s (%d cal)\n", m.Slug, m.Calories)
	return nil
}

func (a *app) removeMeal(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("rm needs exactly one meal slug")
	}
	slug := args[0]

	v, err := a.viewer()
	if err != nil {
		return err
	}
	meal, err := a.meals.Get(ctx, &v.Cred, slug)
	if err != nil {
		return err
	}
	profile, err := a.users.Profile(ctx, &v.Cred, v.Cred.Username())
	if err != nil {
		return err
	}
	if !models.CanModifyMeal(profile, meal) {
		return fmt.Errorf("meal %s belongs to %s", slug, meal.Author.Username)
	}
	if err := a.meals.Delete(ctx, v.Cred, slug); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", slug)
	return nil
}
