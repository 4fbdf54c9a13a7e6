package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/k-negishi/eventboard/internal/config"
	"github.com/k-negishi/eventboard/internal/domain"
	"github.com/k-negishi/eventboard/internal/gateway"
	"github.com/k-negishi/eventboard/internal/logger"
	"github.com/k-negishi/eventboard/internal/metrics"
	"github.com/k-negishi/eventboard/internal/server"
	"github.com/k-negishi/eventboard/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "eventboard: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "eventboard",
		Usage:  "List events classified as current, future or past.",
		Writer: out,
		Commands: []*cli.Command{
			listCommand(),
			serveCommand(),
			notifyCommand(),
		},
	}
}

// deps コマンド共通の依存関係
type deps struct {
	cfg    *config.Config
	log    *zap.Logger
	loc    *time.Location
	clock  func() time.Time
	source usecase.EventSource
}

// setup 設定を読み込み、基準日 today (空なら現在) に合わせたソースを作成
func setup(ctx context.Context, today string) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("ロガーの初期化に失敗しました: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	clock, err := referenceClock(today, loc)
	if err != nil {
		return nil, err
	}

	source, err := gateway.NewEventSource(ctx, cfg, clock, log)
	if err != nil {
		return nil, fmt.Errorf("イベントソースの初期化に失敗しました: %w", err)
	}

	return &deps{cfg: cfg, log: log, loc: loc, clock: clock, source: source}, nil
}

// referenceClock 基準日を loc で返す。today が指定されていればその日に固定
func referenceClock(today string, loc *time.Location) (func() time.Time, error) {
	if today == "" {
		return func() time.Time { return time.Now().In(loc) }, nil
	}
	fixed, err := time.ParseInLocation("2006-01-02", today, loc)
	if err != nil {
		return nil, fmt.Errorf("--today は YYYY-MM-DD で指定してください: %w", err)
	}
	return func() time.Time { return fixed }, nil
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the ordered event listing.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "temporal", Usage: "Comma separated classes to include (current,future,past)."},
			&cli.StringFlag{Name: "format", Value: "text", Usage: "Output format: text, json or ics."},
			&cli.StringFlag{Name: "today", Usage: "Reference date (YYYY-MM-DD). Defaults to now."},
		},
		Action: func(c *cli.Context) error {
			temporals, err := domain.ParseTemporals(c.String("temporal"))
			if err != nil {
				return err
			}

			d, err := setup(c.Context, c.String("today"))
			if err != nil {
				return err
			}
			defer func() { _ = d.log.Sync() }()

			listing, err := usecase.NewListEventsUseCase(d.source, d.clock, d.log).Execute(c.Context)
			if err != nil {
				return err
			}
			events := usecase.Filter(listing.Events, temporals...)

			switch c.String("format") {
			case "text":
				return writeText(c.App.Writer, events, d.loc)
			case "json":
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			case "ics":
				_, err := io.WriteString(c.App.Writer, gateway.EncodeICS(events, listing.GeneratedAt))
				return err
			default:
				return fmt.Errorf("不明な出力形式です: %s", c.String("format"))
			}
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the listing over HTTP and refresh it on a schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides LISTEN)."},
		},
		Action: func(c *cli.Context) error {
			d, err := setup(c.Context, "")
			if err != nil {
				return err
			}
			defer func() { _ = d.log.Sync() }()

			listen := d.cfg.Listen
			if c.String("listen") != "" {
				listen = c.String("listen")
			}

			lister := usecase.NewListEventsUseCase(d.source, d.clock, d.log)
			srv := server.New(lister, metrics.New(), d.loc, d.log)

			// 初回の生成に失敗しても起動は続ける
			_ = srv.Refresh(c.Context)

			if err := srv.StartScheduler(c.Context, d.cfg.RefreshCron); err != nil {
				return err
			}
			defer srv.StopScheduler()

			return srv.Run(c.Context, listen)
		},
	}
}

func notifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Send today's and upcoming events to LINE.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the message instead of sending it."},
		},
		Action: func(c *cli.Context) error {
			d, err := setup(c.Context, "")
			if err != nil {
				return err
			}
			defer func() { _ = d.log.Sync() }()

			lister := usecase.NewListEventsUseCase(d.source, d.clock, d.log)
			notifier := gateway.NewLINENotifier(d.cfg.LineChannelAccessToken, d.cfg.LineUserID, d.loc)

			if c.Bool("dry-run") {
				listing, err := lister.Execute(c.Context)
				if err != nil {
					return err
				}
				current, upcoming := usecase.Digest(listing.Events, d.cfg.UpcomingLimit)
				_, err = io.WriteString(c.App.Writer, notifier.BuildDigestMessage(listing.Today, current, upcoming))
				return err
			}

			if err := d.cfg.ValidateNotifier(); err != nil {
				return err
			}
			skipped, err := usecase.NewNotifyDigestUseCase(lister, notifier, d.cfg.UpcomingLimit, d.log).Execute(c.Context)
			if err != nil {
				return err
			}
			if skipped {
				fmt.Fprintln(c.App.Writer, "予定なしのため通知をスキップしました")
				return nil
			}
			fmt.Fprintln(c.App.Writer, "通知を送信しました")
			return nil
		},
	}
}

// writeText 区分・日時・タイトル・場所を表形式で出力
func writeText(w io.Writer, events []domain.ProcessedEvent, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Temporal, e.Date.In(loc).Format("2006-01-02 15:04"), e.ID, e.Title)
		if e.Location != "" {
			fmt.Fprintf(tw, "\t\t\t@ %s\n", e.Location)
		}
	}
	return tw.Flush()
}
