package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"post-judge/config"
	"post-judge/judge"
	"post-judge/model"
	"post-judge/notify"
	"post-judge/orchestrator"
	"post-judge/ranker"
	"post-judge/recovery"
	"post-judge/scheduler"
	"post-judge/storage"
)

const usage = `usage: post-judge <command> [flags]

commands:
  submit   -nickname NAME -body TEXT   create a post and judge it
  rejudge  -id ID -personas a,b        re-run judges for a failed post
  top      [-n N]                      show the leaderboard
  rank     -id ID                      show a post with its judgments and rank
  serve                                run the stale-post sweeper until interrupted
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Load configuration
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
		os.Exit(1)
	}

	// Logs go to stderr so command output on stdout stays clean
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	slog.Debug("config loaded", "path", configPath)

	// Initialize database
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	app, err := newApp(cfg, db)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := app.dispatch(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

// App holds all application dependencies.
type App struct {
	cfg   *config.Config
	db    *storage.DB
	svc   *orchestrator.Service
	index *ranker.Index
	out   io.Writer
}

func newApp(cfg *config.Config, db *storage.DB) (*App, error) {
	index := ranker.NewIndex(db)

	factory := judge.NewFactory(judge.FactoryOptions{
		Providers:   providerConfigs(cfg.Providers),
		Keys:        judge.EnvAPIKey,
		MaxRetries:  *cfg.Judging.MaxRetries,
		BaseDelay:   cfg.Judging.BaseDelay.Std(),
		HTTPTimeout: cfg.Judging.HTTPTimeout.Std(),
	})

	opts := []orchestrator.Option{
		orchestrator.WithTimeouts(cfg.Judging.PerTaskTimeout.Std(), cfg.Judging.OverallTimeout.Std()),
		orchestrator.WithShutdownGrace(cfg.Judging.ShutdownGrace.Std()),
		orchestrator.WithIndex(index),
	}

	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegram(cfg.Telegram.Token)
		if err != nil {
			return nil, err
		}
		notifier := notify.NewNotifier(tg, index, cfg.Telegram.ChatID, notify.WithTopN(cfg.Telegram.TopN))
		opts = append(opts, orchestrator.WithNotifier(notifier))
	}

	return &App{
		cfg:   cfg,
		db:    db,
		svc:   orchestrator.NewService(db, factory, opts...),
		index: index,
		out:   os.Stdout,
	}, nil
}

func (a *App) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "submit":
		return a.submit(ctx, args)
	case "rejudge":
		return a.rejudge(ctx, args)
	case "top":
		return a.top(ctx, args)
	case "rank":
		return a.rank(ctx, args)
	case "serve":
		return a.serve(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	nickname := fs.String("nickname", "", "poster nickname (1-20 characters)")
	body := fs.String("body", "", "post body (3-30 characters)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	post, err := a.svc.CreatePost(ctx, *nickname, *body)
	if err != nil {
		return err
	}
	if err := a.svc.JudgePost(ctx, post.ID); err != nil {
		return err
	}
	return a.printDetail(ctx, post.ID)
}

func (a *App) rejudge(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rejudge", flag.ContinueOnError)
	id := fs.String("id", "", "post id")
	personas := fs.String("personas", "", "comma-separated personas to re-run (hiroyuki,dewi,nakao)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	if err := a.svc.RejudgePost(ctx, *id, parsePersonas(*personas)); err != nil {
		return err
	}
	return a.printDetail(ctx, *id)
}

func (a *App) top(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	n := fs.Int("n", 10, "number of posts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	posts, err := a.index.TopN(ctx, *n)
	if err != nil {
		return err
	}
	total, err := a.index.TotalScored(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tAVG\tJUDGES\tNICKNAME\tBODY\tID")
	for i, p := range posts {
		fmt.Fprintf(tw, "%d\t%.1f\t%d\t%s\t%s\t%s\n", i+1, *p.AverageScore, p.JudgesCount, p.Nickname, p.Body, p.ID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\n%d scored posts\n", total)
	return nil
}

func (a *App) rank(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rank", flag.ContinueOnError)
	id := fs.String("id", "", "post id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	return a.printDetail(ctx, *id)
}

func (a *App) serve(ctx context.Context) error {
	sched, err := scheduler.NewScheduler(a.cfg.Timezone)
	if err != nil {
		return err
	}

	runner := recovery.NewRunner(a.db, a.svc,
		recovery.WithStaleAfter(a.cfg.Recovery.StaleAfter.Std()),
		recovery.WithBatchSize(a.cfg.Recovery.BatchSize),
	)
	sweep := func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("recovery sweep failed", "error", err)
		}
	}

	if err := sched.Schedule(a.cfg.Recovery.Schedule, sweep); err != nil {
		return fmt.Errorf("schedule recovery: %w", err)
	}
	sched.Start()
	defer sched.Stop()
	slog.Info("recovery scheduled", "schedule", a.cfg.Recovery.Schedule, "timezone", a.cfg.Timezone, "next", sched.Next())

	// Catch up on anything left over from before a restart
	sweep()

	<-ctx.Done()
	slog.Info("server stopped")
	return nil
}

func (a *App) printDetail(ctx context.Context, id string) error {
	d, err := a.svc.PostDetail(ctx, id)
	if err != nil {
		return err
	}
	p := d.Post

	fmt.Fprintf(a.out, "id:       %s\n", p.ID)
	fmt.Fprintf(a.out, "nickname: %s\n", p.Nickname)
	fmt.Fprintf(a.out, "body:     %s\n", p.Body)
	fmt.Fprintf(a.out, "created:  %s\n", time.Unix(p.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(a.out, "status:   %s\n", p.Status)
	if p.AverageScore != nil {
		fmt.Fprintf(a.out, "average:  %.1f (%d judges)\n", *p.AverageScore, p.JudgesCount)
	}
	if d.RankKnown {
		fmt.Fprintf(a.out, "rank:     %d\n", d.Rank)
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nJUDGE\tRESULT\tEMP\tHUM\tBRV\tORG\tEXP\tTOTAL\tCOMMENT")
	for _, j := range d.Judgments {
		if !j.Succeeded {
			code := model.ErrorUnknown
			if j.ErrorCode != nil {
				code = *j.ErrorCode
			}
			fmt.Fprintf(tw, "%s\t%s\t\t\t\t\t\t\t\n", j.Persona, code)
			continue
		}
		s := j.Scores
		fmt.Fprintf(tw, "%s\tok\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			j.Persona, s.Empathy, s.Humor, s.Brevity, s.Originality, s.Expression, s.Total(), *j.Comment)
	}
	return tw.Flush()
}

func providerConfigs(in map[string]config.ProviderConfig) map[model.Persona]judge.ProviderConfig {
	out := make(map[model.Persona]judge.ProviderConfig, len(in))
	for persona, p := range in {
		out[model.Persona(persona)] = judge.ProviderConfig{
			Kind:        judge.ProviderKind(p.Kind),
			Model:       p.Model,
			BaseURL:     p.BaseURL,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			APIKeyEnv:   p.APIKeyEnv,
		}
	}
	return out
}

func parsePersonas(s string) []model.Persona {
	var out []model.Persona
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, model.Persona(strings.ToLower(part)))
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
