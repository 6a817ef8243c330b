package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

const DefaultLanguage = "pt"

// Language is a selectable interface language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var languages = []Language{
	{Code: "pt", Name: "Português"},
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Español"},
}

func AvailableLanguages() []Language {
	return append([]Language(nil), languages...)
}

// LanguageName returns the display name of code, falling back to the
// default language for unknown codes.
func LanguageName(code string) string {
	for _, l := range languages {
		if l.Code == code {
			return l.Name
		}
	}
	return languages[0].Name
}

func supported(code string) bool {
	for _, l := range languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

type Preferences struct {
	NotificationsEnabled bool   `json:"notifications_enabled"`
	Language             string `json:"language"`
	LanguageName         string `json:"language_name"`
	FirstLaunch          bool   `json:"first_launch"`
}

// Update carries the preferences a client wants to change. Nil fields are
// left alone.
type Update struct {
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	Language             *string `json:"language"`
}

// DataClearer removes one kind of stored data.
type DataClearer interface {
	ClearData(ctx context.Context) error
}

type Service struct {
	store    Store
	logger   zerolog.Logger
	clearers []DataClearer
}

// NewService builds the settings service. clearers run in order on
// ClearAllData.
func NewService(store Store, logger zerolog.Logger, clearers ...DataClearer) *Service {
	return &Service{store: store, logger: logger, clearers: clearers}
}

func (s *Service) Get() Preferences {
	lang := s.store.GetString(KeyLanguage)
	return Preferences{
		NotificationsEnabled: s.store.GetBool(KeyNotificationsEnabled),
		Language:             lang,
		LanguageName:         LanguageName(lang),
		FirstLaunch:          s.store.GetBool(KeyFirstLaunch),
	}
}

func (s *Service) Update(u Update) (Preferences, error) {
	if u.Language != nil && !supported(*u.Language) {
		return s.Get(), fmt.Errorf("%w: %q", ErrUnsupportedLanguage, *u.Language)
	}
	if u.NotificationsEnabled != nil {
		if err := s.store.Set(KeyNotificationsEnabled, *u.NotificationsEnabled); err != nil {
			return s.Get(), err
		}
	}
	if u.Language != nil {
		if err := s.store.Set(KeyLanguage, *u.Language); err != nil {
			return s.Get(), err
		}
	}
	return s.Get(), nil
}

func (s *Service) IsFirstLaunch() bool {
	return s.store.GetBool(KeyFirstLaunch)
}

func (s *Service) MarkLaunched() error {
	return s.store.Set(KeyFirstLaunch, false)
}

// ClearAll restores every preference to its default.
func (s *Service) ClearAll() error {
	return s.store.Clear()
}

// ClearAllData removes history, tree and guides, then the preferences. It
// stops at the first failure; data removed before it stays removed.
func (s *Service) ClearAllData(ctx context.Context) error {
	for _, c := range s.clearers {
		if err := c.ClearData(ctx); err != nil {
			s.logger.Error().Err(err).Msg("clear data failed")
			return fmt.Errorf("clear data: %w", err)
		}
	}
	if err := s.ClearAll(); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	s.logger.Info().Int("stores", len(s.clearers)).Msg("all data cleared")
	return nil
}
