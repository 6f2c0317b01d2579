package store

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSetting indicates a setting value failed validation.
	ErrInvalidSetting = errors.New("invalid setting")
	// ErrUnknownSetting indicates an edit targeted a key absent from the settings file.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrUnknownCommand indicates an edit targeted a token absent from the command table.
	ErrUnknownCommand = errors.New("unknown command")
)

// ValidationError reports which key of the game data is invalid.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

// Is lets errors.Is match ValidationError against ErrInvalidSetting.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSetting
}

// Config is the typed game configuration derived from the settings record.
type Config struct {
	Sequence           []string
	MaxErrors          int
	AlarmDuration      time.Duration
	BlockTimeOnAlarm   time.Duration
	GlobalTimer        time.Duration
	VictoryDisplayTime time.Duration
	InactivityTimeout  time.Duration
	VictoryCode        string
}

// Snapshot is an immutable view of the game data. Reloads replace it wholesale.
type Snapshot struct {
	Config   Config
	Commands CommandTable
	Settings Settings
	LoadedAt time.Time
}

// Problems lists inconsistencies that do not prevent loading but make the puzzle unwinnable.
func (s *Snapshot) Problems() []string {
	if s == nil {
		return []string{"no configuration loaded"}
	}
	problems := make([]string, 0)
	for idx, token := range s.Config.Sequence {
		if _, ok := s.Commands.Lookup(token); !ok {
			problems = append(problems, fmt.Sprintf("sequence step %d (%q) is not in the command table", idx+1, token))
		}
	}
	return problems
}

func buildConfig(settings Settings) (Config, error) {
	cfg := Config{}

	sequence, err := sequenceValue(settings)
	if err != nil {
		return Config{}, err
	}
	cfg.Sequence = sequence

	maxErrors, err := intValue(settings, KeyMaxErrors)
	if err != nil {
		return Config{}, err
	}
	if maxErrors <= 0 {
		return Config{}, &ValidationError{Key: KeyMaxErrors, Reason: "must be > 0"}
	}
	cfg.MaxErrors = maxErrors

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{key: KeyAlarmDuration, target: &cfg.AlarmDuration},
		{key: KeyBlockTimeOnAlarm, target: &cfg.BlockTimeOnAlarm},
		{key: KeyGlobalTimer, target: &cfg.GlobalTimer},
		{key: KeyVictoryDisplayTime, target: &cfg.VictoryDisplayTime},
		{key: KeyInactivityTimeout, target: &cfg.InactivityTimeout},
	}
	for _, item := range durations {
		key := item.key
		if _, ok := settings.Get(key); !ok && key == KeyVictoryDisplayTime {
			key = legacyKeyVictoryDisplayTime
		}
		seconds, err := intValue(settings, key)
		if err != nil {
			return Config{}, err
		}
		if seconds < 0 {
			return Config{}, &ValidationError{Key: key, Reason: "must be >= 0"}
		}
		*item.target = time.Duration(seconds) * time.Second
	}

	if setting, ok := settings.Get(KeyVictoryCode); ok && setting.Value != nil {
		cfg.VictoryCode = setting.FormatValue()
	}
	return cfg, nil
}

func sequenceValue(settings Settings) ([]string, error) {
	setting, ok := settings.Get(KeySequence)
	if !ok {
		return nil, &ValidationError{Key: KeySequence, Reason: "missing"}
	}

	var raw []string
	switch typed := setting.Value.(type) {
	case string:
		raw = []string{typed}
	case []string:
		raw = typed
	default:
		return nil, &ValidationError{Key: KeySequence, Reason: "must be a token or a list of tokens"}
	}

	sequence := make([]string, 0, len(raw))
	for _, token := range raw {
		if normalized := NormalizeToken(token); normalized != "" {
			sequence = append(sequence, normalized)
		}
	}
	if len(sequence) == 0 {
		return nil, &ValidationError{Key: KeySequence, Reason: "must not be empty"}
	}
	return sequence, nil
}

// intValue reads an integer setting. Missing keys read as zero.
func intValue(settings Settings, key string) (int, error) {
	setting, ok := settings.Get(key)
	if !ok || setting.Value == nil {
		return 0, nil
	}
	value, ok := setting.Value.(int)
	if !ok {
		return 0, &ValidationError{Key: key, Reason: "must be a whole number"}
	}
	return value, nil
}
