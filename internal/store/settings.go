package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Setting keys understood by the game.
const (
	KeySequence           = "sequence"
	KeyMaxErrors          = "max_errors"
	KeyAlarmDuration      = "alarm_duration"
	KeyBlockTimeOnAlarm   = "block_time_on_alarm"
	KeyGlobalTimer        = "global_timer"
	KeyVictoryDisplayTime = "victory_display_time"
	KeyVictoryCode        = "victory_code"
	KeyInactivityTimeout  = "inactivity_timeout"

	legacyKeyVictoryDisplayTime = "victory_code_display_time"
)

// Setting is one tunable parameter. Value is an int, a string, a bool or a []string.
type Setting struct {
	Key         string
	Description string
	Value       any
}

// Label returns the description, or the key when no description is set.
func (s Setting) Label() string {
	if strings.TrimSpace(s.Description) != "" {
		return s.Description
	}
	return s.Key
}

// FormatValue renders the value the way the admin console displays it.
func (s Setting) FormatValue() string {
	switch typed := s.Value.(type) {
	case []string:
		return strings.Join(typed, ", ")
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}

// Settings is the ordered settings record.
type Settings struct {
	order   []string
	entries map[string]Setting
}

// Get returns one setting by key.
func (s Settings) Get(key string) (Setting, bool) {
	setting, ok := s.entries[key]
	return setting, ok
}

// All returns settings in file order.
func (s Settings) All() []Setting {
	out := make([]Setting, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.entries[key])
	}
	return out
}

// with returns a copy of s with one value replaced.
func (s Settings) with(key string, value any) Settings {
	next := Settings{
		order:   append([]string(nil), s.order...),
		entries: make(map[string]Setting, len(s.entries)),
	}
	for k, v := range s.entries {
		next.entries[k] = v
	}
	setting := next.entries[key]
	setting.Key = key
	setting.Value = value
	next.entries[key] = setting
	return next
}

type settingRecord struct {
	Description string          `json:"description,omitempty"`
	Desc        string          `json:"desc,omitempty"`
	Value       json.RawMessage `json:"value"`
}

type settingOutput struct {
	Description string `json:"description"`
	Value       any    `json:"value"`
}

func decodeSettings(data []byte) (Settings, error) {
	object, err := decodeOrderedObject(data)
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		order:   make([]string, 0, len(object.keys)),
		entries: make(map[string]Setting, len(object.keys)),
	}
	for _, key := range object.keys {
		var record settingRecord
		if err := json.Unmarshal(object.values[key], &record); err != nil {
			return Settings{}, fmt.Errorf("decode setting %q: %w", key, err)
		}
		value, err := decodeSettingValue(key, record.Value)
		if err != nil {
			return Settings{}, err
		}
		description := record.Description
		if description == "" {
			description = record.Desc
		}
		settings.order = append(settings.order, key)
		settings.entries[key] = Setting{Key: key, Description: description, Value: value}
	}
	return settings, nil
}

func decodeSettingValue(key string, raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode setting %q value: %w", key, err)
	}

	switch typed := decoded.(type) {
	case float64:
		if typed != math.Trunc(typed) {
			return nil, &ValidationError{Key: key, Reason: "numeric values must be whole numbers"}
		}
		return int(typed), nil
	case string, bool:
		return typed, nil
	case []any:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			text, ok := item.(string)
			if !ok {
				return nil, &ValidationError{Key: key, Reason: "list values must be strings"}
			}
			items = append(items, text)
		}
		return items, nil
	default:
		return nil, &ValidationError{Key: key, Reason: fmt.Sprintf("unsupported value type %T", decoded)}
	}
}

func encodeSettings(settings Settings) ([]byte, error) {
	encoded, err := encodeOrderedObject(settings.order, func(key string) any {
		setting := settings.entries[key]
		return settingOutput{Description: setting.Description, Value: setting.Value}
	})
	if err != nil {
		return nil, err
	}
	return indentJSON(encoded)
}

// ParseSettingInput converts operator input into a setting value: the
// sequence key takes a list of tokens, digit-only input becomes an int and
// anything else stays a string.
//
// Sequence tokens are comma separated when the input contains a comma, so
// multi-word commands stay intact; otherwise whitespace separates them.
func ParseSettingInput(key, input string) any {
	input = strings.TrimSpace(input)
	if key == KeySequence {
		separator := unicode.IsSpace
		if strings.Contains(input, ",") {
			separator = func(r rune) bool { return r == ',' }
		}
		fields := strings.FieldsFunc(input, separator)
		tokens := make([]string, 0, len(fields))
		for _, field := range fields {
			if token := NormalizeToken(field); token != "" {
				tokens = append(tokens, token)
			}
		}
		return tokens
	}
	if input != "" && isDigits(input) {
		if value, err := strconv.Atoi(input); err == nil {
			return value
		}
	}
	return input
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
