package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/wtfshenei/hacking-minigame/internal/admin"
	"github.com/wtfshenei/hacking-minigame/internal/alarm"
	"github.com/wtfshenei/hacking-minigame/internal/clock"
	"github.com/wtfshenei/hacking-minigame/internal/events"
	"github.com/wtfshenei/hacking-minigame/internal/game"
	"github.com/wtfshenei/hacking-minigame/internal/screen"
	"github.com/wtfshenei/hacking-minigame/internal/terminal"
)

func newPlayCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Run the hacking terminal (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlay(cmd.Context(), a)
		},
	}
}

// newLineReader builds the timed reader over the app input. Raw mode is only
// used when the input is a real terminal.
func (a *app) newLineReader() (*terminal.Reader, error) {
	options := []terminal.Option{}
	if file, ok := a.stdin.(*os.File); ok {
		options = append(options, terminal.WithConsole(terminal.NewConsole(file)))
	}
	reader, err := terminal.NewReader(a.stdin, a.stdout, options...)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return reader, nil
}

func runPlay(ctx context.Context, a *app) error {
	ctx, end := a.traced(ctx, "play")
	defer end()

	st, err := a.openStore()
	if err != nil {
		return err
	}
	if problems := st.Current().Problems(); len(problems) > 0 {
		a.logger.Warn("game data has problems", "problems", problems)
	}

	reader, err := a.newLineReader()
	if err != nil {
		return err
	}

	bus := events.New(events.WithLogger(a.logger))
	defer bus.Close()
	bus.SubscribeAll(events.AuditHandler(a.logger))

	wall := clock.System{}
	display := screen.New(a.stdout,
		screen.WithClock(wall),
		screen.WithTitle(a.cfg.BannerTitle),
		screen.WithAlarmSound(a.cfg.AlarmSound),
	)
	alarmHandler, err := alarm.NewHandler(display, wall, a.logger)
	if err != nil {
		return err
	}
	console, err := admin.NewConsole(reader, a.stdout, st, a.cfg.AdminToken, a.logger)
	if err != nil {
		return err
	}

	runner, err := game.NewRunner(game.Deps{
		Reader:  reader,
		Source:  st,
		Display: display,
		Alarm:   alarmHandler,
		Admin:   console,
		Clock:   wall,
		Bus:     bus,
		Logger:  a.logger,
	}, game.Rules{
		AdminToken:      a.cfg.AdminToken,
		InactivityGrace: a.cfg.InactivityGrace,
	})
	if err != nil {
		return err
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	var watchers sync.WaitGroup
	if a.cfg.WatchFiles {
		watchers.Add(1)
		go func() {
			defer watchers.Done()
			if watchErr := st.Watch(watchCtx, runner.ReportReload); watchErr != nil {
				a.logger.Warn("file watcher stopped", "error", watchErr)
			}
		}()
	}
	defer func() {
		stopWatch()
		watchers.Wait()
	}()

	err = runner.Run(ctx)
	if errors.Is(err, terminal.ErrInterrupted) {
		a.logger.Info("terminal interrupted from the keyboard")
		return nil
	}
	return err
}
