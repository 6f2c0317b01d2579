package store

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultSettingsFile is the settings file name inside the data directory.
	DefaultSettingsFile = "settings.json"
	// DefaultCommandsFile is the command table file name inside the data directory.
	DefaultCommandsFile = "commands.json"
)

// Option configures Store construction.
type Option func(*Store)

// WithRand sets the source used by ShuffleCommands.
func WithRand(rng *rand.Rand) Option {
	return func(store *Store) {
		if rng != nil {
			store.rng = rng
		}
	}
}

// WithClock overrides the timestamp source recorded on snapshots.
func WithClock(now func() time.Time) Option {
	return func(store *Store) {
		if now != nil {
			store.now = now
		}
	}
}

// Store owns the settings and command table files and the current snapshot.
type Store struct {
	settingsPath string
	commandsPath string
	now          func() time.Time
	rng          *rand.Rand

	current atomic.Pointer[Snapshot]

	// writeMu serializes edits so read-modify-write cycles do not interleave.
	writeMu sync.Mutex
}

// Open loads both files. A load failure here is fatal for the caller.
func Open(settingsPath, commandsPath string, options ...Option) (*Store, error) {
	settingsPath = strings.TrimSpace(settingsPath)
	commandsPath = strings.TrimSpace(commandsPath)
	if settingsPath == "" {
		return nil, errors.New("settings path is required")
	}
	if commandsPath == "" {
		return nil, errors.New("commands path is required")
	}

	store := &Store{
		settingsPath: settingsPath,
		commandsPath: commandsPath,
		now:          time.Now,
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(store)
	}

	if _, err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Current returns the active snapshot. Callers must not mutate it.
func (s *Store) Current() *Snapshot {
	if s == nil {
		return nil
	}
	return s.current.Load()
}

// SettingsPath returns the settings file path.
func (s *Store) SettingsPath() string {
	return s.settingsPath
}

// CommandsPath returns the command table file path.
func (s *Store) CommandsPath() string {
	return s.commandsPath
}

// Reload reads both files and swaps in a new snapshot. On failure the previous
// snapshot stays active.
func (s *Store) Reload() (*Snapshot, error) {
	if s == nil {
		return nil, errors.New("store is nil")
	}
	snapshot, err := s.load()
	if err != nil {
		return s.current.Load(), err
	}
	s.current.Store(snapshot)
	return snapshot, nil
}

func (s *Store) load() (*Snapshot, error) {
	// #nosec G304 -- paths come from operator configuration.
	settingsData, err := os.ReadFile(s.settingsPath)
	if err != nil {
		return nil, fmt.Errorf("read settings %q: %w", s.settingsPath, err)
	}
	settings, err := decodeSettings(settingsData)
	if err != nil {
		return nil, fmt.Errorf("parse settings %q: %w", s.settingsPath, err)
	}
	cfg, err := buildConfig(settings)
	if err != nil {
		return nil, fmt.Errorf("validate settings %q: %w", s.settingsPath, err)
	}

	// #nosec G304 -- paths come from operator configuration.
	commandsData, err := os.ReadFile(s.commandsPath)
	if err != nil {
		return nil, fmt.Errorf("read commands %q: %w", s.commandsPath, err)
	}
	commands, err := decodeCommandTable(commandsData)
	if err != nil {
		return nil, fmt.Errorf("parse commands %q: %w", s.commandsPath, err)
	}

	return &Snapshot{
		Config:   cfg,
		Commands: commands,
		Settings: settings,
		LoadedAt: s.now().UTC(),
	}, nil
}

// SetSetting validates and persists a new value for an existing setting key.
func (s *Store) SetSetting(key string, value any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.Current()
	if current == nil {
		return errors.New("no snapshot loaded")
	}
	key = strings.TrimSpace(key)
	if _, ok := current.Settings.Get(key); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}

	next := current.Settings.with(key, value)
	if _, err := buildConfig(next); err != nil {
		return err
	}
	data, err := encodeSettings(next)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := writeFileAtomic(s.settingsPath, data); err != nil {
		return err
	}
	_, err = s.Reload()
	return err
}

// SetCommandDelay persists a new delay (in seconds) for one command.
func (s *Store) SetCommandDelay(token string, delay int) error {
	if delay < 0 {
		return &ValidationError{Key: "commands." + NormalizeToken(token) + ".delay", Reason: "must be >= 0"}
	}
	return s.editCommand(token, func(command *Command) {
		command.Delay = delay
	})
}

// SetCommandHidden persists the help visibility of one command.
func (s *Store) SetCommandHidden(token string, hidden bool) error {
	return s.editCommand(token, func(command *Command) {
		command.Hidden = hidden
	})
}

func (s *Store) editCommand(token string, edit func(*Command)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.Current()
	if current == nil {
		return errors.New("no snapshot loaded")
	}
	token = NormalizeToken(token)
	entries := current.Commands.Entries()
	found := false
	for idx := range entries {
		if entries[idx].Token != token {
			continue
		}
		edit(&entries[idx].Command)
		found = true
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, token)
	}
	return s.saveCommands(entries)
}

// ShuffleCommands randomizes the command listing order. The keepLast token,
// when present, is moved to the end.
func (s *Store) ShuffleCommands(keepLast string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.Current()
	if current == nil {
		return errors.New("no snapshot loaded")
	}
	keepLast = NormalizeToken(keepLast)

	visible := make([]CommandEntry, 0, current.Commands.Len())
	tail := make([]CommandEntry, 0, 1)
	for _, entry := range current.Commands.Entries() {
		if keepLast != "" && entry.Token == keepLast {
			tail = append(tail, entry)
			continue
		}
		visible = append(visible, entry)
	}
	s.rng.Shuffle(len(visible), func(i, j int) {
		visible[i], visible[j] = visible[j], visible[i]
	})
	return s.saveCommands(append(visible, tail...))
}

func (s *Store) saveCommands(entries []CommandEntry) error {
	table, err := NewCommandTable(entries...)
	if err != nil {
		return err
	}
	data, err := encodeCommandTable(table)
	if err != nil {
		return fmt.Errorf("encode commands: %w", err)
	}
	if err := writeFileAtomic(s.commandsPath, data); err != nil {
		return err
	}
	_, err = s.Reload()
	return err
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file for %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %q: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %q: %w", path, err)
	}
	return nil
}
