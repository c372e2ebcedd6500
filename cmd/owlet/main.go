// Package main is the Owlet client CLI. It drives the local-first
// progress core: lessons bank coins and streaks into the layered local
// store, and an optional account server keeps devices in sync.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/owlet-learn/owlet-core/config"
	"github.com/owlet-learn/owlet-core/internal/application/command"
	"github.com/owlet-learn/owlet-core/internal/application/profilestore"
	"github.com/owlet-learn/owlet-core/internal/application/query"
	syncapp "github.com/owlet-learn/owlet-core/internal/application/sync"
	"github.com/owlet-learn/owlet-core/internal/domain/generator"
	"github.com/owlet-learn/owlet-core/internal/domain/shared"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/external/gameapi"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/messaging"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/persistence/local"
	"github.com/owlet-learn/owlet-core/pkg/datekey"
	"github.com/owlet-learn/owlet-core/pkg/logger"
)

const usage = `owlet - local-first learning progress

Usage:
  owlet <command> [flags]

Commands:
  lesson    bank a finished lesson session
  status    show the profile summary
  practice  print a deterministic practice set
  buy       spend coins on a reward item
  login     link this device to an account
  logout    return to guest mode (progress is kept)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case "lesson":
		return app.lesson(ctx, args)
	case "status":
		return app.status(ctx, args)
	case "practice":
		return app.practice(ctx, args)
	case "buy":
		return app.buy(ctx, args)
	case "login":
		return app.login(ctx, args)
	case "logout":
		return app.logout(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *local.LayeredStore
	bus      *messaging.InMemoryEventBus
	profiles *profilestore.Store
	client   *gameapi.Client
	core     *syncapp.Core
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Keep the CLI output clean; structured logs only surface problems
	// unless debug is on.
	level := logger.LevelWarn
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	log := logger.New(logger.Options{Output: os.Stderr, Level: level})

	if cfg.App.Location != nil {
		datekey.SetReferenceZone(cfg.App.Location)
	}

	badgerCfg := local.DefaultBadgerConfig(cfg.Local.DataDir)
	badgerCfg.SyncWrites = cfg.Local.SyncWrites
	badgerCfg.Logger = log
	primary := local.NewBadgerStore(badgerCfg)
	fallback := local.NewFileStore(cfg.Local.FallbackFile, log)
	store := local.NewLayeredStore(log, primary, fallback)

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)

	profiles := profilestore.New(profilestore.Config{
		Persistence: store,
		Publisher:   bus,
		Logger:      log,
	})
	if err := profiles.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		bus:      bus,
		profiles: profiles,
	}

	// Surface gamification events as terminal output.
	_ = bus.Subscribe(shared.EventBadgeUnlocked, func(e shared.Event) {
		if ev, ok := e.(shared.BadgeUnlockedEvent); ok {
			fmt.Printf("🏅 Badge unlocked: %s\n", ev.Label)
		}
	})
	_ = bus.Subscribe(shared.EventCoinCapWarning, func(e shared.Event) {
		ev, ok := e.(shared.CoinCapWarningEvent)
		if !ok {
			return
		}
		if ev.CapReached {
			fmt.Println("⚠ Daily coin cap reached, earnings resume tomorrow.")
			return
		}
		fmt.Printf("⚠ Daily coin cap almost reached: %d coins left today.\n", ev.Remaining)
	})

	// Sync is optional. Without a configured server the app is fully
	// offline and everything still works.
	if cfg.API.BaseURL != "" {
		clientCfg := gameapi.DefaultClientConfig(cfg.API.BaseURL)
		clientCfg.Timeout = cfg.API.RequestTimeout
		clientCfg.MaxAttempts = cfg.API.MaxRetries + 1
		clientCfg.Logger = log
		a.client = gameapi.NewClient(clientCfg)

		a.core = syncapp.New(syncapp.Config{
			API:         a.client,
			Profiles:    profiles,
			Meta:        store,
			Publisher:   bus,
			TZ:          cfg.App.Timezone,
			SettleDelay: cfg.Sync.SettleDelay,
			Logger:      log,
		})
		a.core.Restore(ctx)
	}

	return a, nil
}

func (a *app) Close() {
	_ = a.bus.Close()
	_ = a.store.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func (a *app) lesson(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lesson", flag.ExitOnError)
	correct := fs.Int("correct", 0, "correct answers in the session")
	wrong := fs.Int("wrong", 0, "wrong answers in the session")
	streak := fs.Int("run", 0, "longest run of consecutive correct answers")
	mode := fs.String("mode", "", "game mode (required)")
	subject := fs.String("subject", "", "subject, e.g. maths")
	year := fs.Int("year", 0, "school year")
	topic := fs.String("topic", "", "topic, e.g. times-tables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var pusher command.ProgressPusher
	if a.core != nil {
		pusher = a.core
	}

	handler := command.NewCompleteLessonHandler(command.CompleteLessonHandlerConfig{
		Profiles:      a.profiles,
		Pusher:        pusher,
		Bus:           a.bus,
		FreezeEnabled: a.cfg.Features.IsEnabled(config.FeatureStreakFreeze),
		Logger:        a.log,
	})

	result, err := handler.Handle(ctx, command.CompleteLessonCommand{
		Correct:       *correct,
		Wrong:         *wrong,
		CorrectStreak: *streak,
		Mode:          *mode,
		Subject:       *subject,
		Year:          *year,
		Topic:         *topic,
		StartedAt:     time.Now(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("+%d coins (total %d)\n", result.Payout.Total, result.Coins)
	switch {
	case result.Streak.Reset:
		fmt.Printf("Streak reset — back to day %d.\n", result.Streak.Current)
	case result.Streak.FreezeUsed:
		fmt.Printf("Streak freeze used! Day %d.\n", result.Streak.Current)
	case result.Streak.Delta > 0:
		fmt.Printf("Streak: day %d 🔥\n", result.Streak.Current)
	}

	return nil
}

func (a *app) status(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	mastery := fs.Bool("mastery", false, "include per-skill accuracy")
	badges := fs.Bool("badges", false, "include unlocked badges")
	asJSON := fs.Bool("json", false, "print the raw summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	handler := query.NewGetProgressSummaryHandler(a.profiles, nil)
	summary, err := handler.Handle(ctx, query.GetProgressSummaryQuery{
		IncludeMastery: *mastery,
		IncludeBadges:  *badges,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Coins:   %d\n", summary.Coins)
	fmt.Printf("Streak:  day %d (best %d, %s)\n",
		summary.Streak.Current, summary.Streak.Best, summary.Streak.Status)
	fmt.Printf("Sessions: %d\n", summary.Sessions)
	if a.core != nil {
		fmt.Printf("Account: %s\n", a.core.State())
	}
	for _, b := range summary.Badges {
		fmt.Printf("  🏅 %s\n", b.Label)
	}
	for _, row := range summary.Mastery {
		fmt.Printf("  %-28s %3.0f%% (%d/%d)\n",
			row.SkillKey, row.Accuracy*100, row.Correct, row.Correct+row.Wrong)
	}

	return nil
}

func (a *app) practice(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("practice", flag.ExitOnError)
	seed := fs.String("seed", string(datekey.Today()), "generator seed (defaults to today)")
	table := fs.Int("table", 0, "times table to practice")
	count := fs.Int("count", 10, "number of questions")
	word := fs.String("word", "", "word to scramble instead of a times table")
	answers := fs.Bool("answers", false, "print answers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *word != "" {
		if !a.cfg.Features.IsEnabled(config.FeatureWordScramble) {
			return fmt.Errorf("word scramble is not enabled")
		}
		fmt.Println(generator.Scramble(*seed, *word))
		return nil
	}

	if *table < 1 {
		return fmt.Errorf("-table is required")
	}

	for i, q := range generator.TimesTable(*seed, *table, *count) {
		if *answers {
			fmt.Printf("%2d. %s = %s\n", i+1, q.Prompt, q.Answer)
		} else {
			fmt.Printf("%2d. %s\n", i+1, q.Prompt)
		}
	}

	return nil
}

func (a *app) buy(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("buy", flag.ExitOnError)
	item := fs.String("item", "", "item id (required)")
	price := fs.Int("price", 0, "item price in coins")
	if err := fs.Parse(args); err != nil {
		return err
	}

	handler := command.NewPurchaseItemHandler(a.profiles, a.bus, a.log)
	result, err := handler.Handle(ctx, command.PurchaseItemCommand{
		ItemID: *item,
		Price:  *price,
	})
	if err != nil {
		return err
	}

	if !result.Purchased {
		fmt.Printf("Not purchased: %v (coins: %d)\n", result.Reason, result.Coins)
		return nil
	}

	fmt.Printf("Purchased %s! Coins left: %d\n", *item, result.Coins)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	token := fs.String("token", "", "session token from the account server")
	account := fs.String("account", "", "account id (mints a dev token)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if a.core == nil {
		return fmt.Errorf("no account server configured (set OWLET_API_BASE_URL)")
	}

	t := *token
	if t == "" && *account != "" {
		minted, err := a.client.RequestToken(ctx, *account)
		if err != nil {
			return fmt.Errorf("failed to mint token: %w", err)
		}
		t = minted
	}
	if t == "" {
		return fmt.Errorf("either -token or -account is required")
	}

	if err := a.core.HandleIncomingToken(ctx, t); err != nil {
		return err
	}

	fmt.Println("Logged in. Progress will sync to your account.")
	return nil
}

func (a *app) logout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if a.core == nil {
		return fmt.Errorf("no account server configured (set OWLET_API_BASE_URL)")
	}

	a.core.Logout(ctx)
	fmt.Println("Logged out. Badges and purchases stay on this device; coins and streak start fresh.")
	return nil
}
