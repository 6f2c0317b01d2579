package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wtfshenei/hacking-minigame/internal/admin"
	"github.com/wtfshenei/hacking-minigame/internal/store"
)

func newAdminCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "admin",
		Short: "Open the admin console without starting a game",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, end := a.traced(cmd.Context(), "admin")
			defer end()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			reader, err := a.newLineReader()
			if err != nil {
				return err
			}
			console, err := admin.NewConsole(reader, cmd.OutOrStdout(), st, a.cfg.AdminToken, a.logger)
			if err != nil {
				return err
			}
			signal, err := console.Open(ctx)
			if err != nil {
				return err
			}
			if signal == admin.SignalReset {
				fmt.Fprintln(cmd.OutOrStdout(), "No game is running; nothing to reset.")
			}
			return nil
		},
	}
}

func newShuffleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shuffle",
		Short: "Shuffle the command table, keeping the admin token last",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, end := a.traced(cmd.Context(), "shuffle")
			defer end()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			if err := st.ShuffleCommands(a.cfg.AdminToken); err != nil {
				return fmt.Errorf("shuffle commands: %w", err)
			}
			a.logger.Info("commands shuffled", "file", st.CommandsPath())

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Commands shuffled:")
			for _, entry := range st.Current().Commands.Entries() {
				fmt.Fprintf(out, "  %s\n", entry.Token)
			}
			return nil
		},
	}
}

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the game data files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, end := a.traced(cmd.Context(), "check")
			defer end()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			problems := checkSnapshot(st.Current(), a.cfg.AdminToken)
			out := cmd.OutOrStdout()
			writeCheckSummary(out, st)
			if len(problems) == 0 {
				fmt.Fprintln(out, "OK: no problems found.")
				return nil
			}
			for _, problem := range problems {
				fmt.Fprintf(out, "PROBLEM: %s\n", problem)
			}
			a.logger.Warn("game data check failed", "problems", problems)
			return fmt.Errorf("%d problem(s) found", len(problems))
		},
	}
}

// checkSnapshot adds operator-facing checks to the store's own problems.
func checkSnapshot(snapshot *store.Snapshot, adminToken string) []string {
	problems := snapshot.Problems()
	if snapshot == nil {
		return problems
	}
	token := store.NormalizeToken(adminToken)
	for _, step := range snapshot.Config.Sequence {
		if step == token {
			problems = append(problems, fmt.Sprintf("the admin token %q is part of the sequence and can never be typed as a step", token))
			break
		}
	}
	for _, meta := range []string{"help", "reset"} {
		for _, step := range snapshot.Config.Sequence {
			if step == meta {
				problems = append(problems, fmt.Sprintf("%q is a terminal command and can never be typed as a step", meta))
				break
			}
		}
	}
	if command, ok := snapshot.Commands.Lookup(token); ok && !command.Hidden {
		problems = append(problems, fmt.Sprintf("the admin token %q is listed by help; mark it hidden", token))
	}
	return problems
}

func writeCheckSummary(out io.Writer, st *store.Store) {
	snapshot := st.Current()
	fmt.Fprintf(out, "Settings: %s\n", st.SettingsPath())
	fmt.Fprintf(out, "Commands: %s\n", st.CommandsPath())
	fmt.Fprintf(out, "Sequence: %s (%d steps)\n", strings.Join(snapshot.Config.Sequence, " > "), len(snapshot.Config.Sequence))
	fmt.Fprintf(out, "Error budget: %d\n", snapshot.Config.MaxErrors)
	fmt.Fprintf(out, "Commands known: %d (%d listed by help)\n", snapshot.Commands.Len(), len(snapshot.Commands.Visible()))
}
