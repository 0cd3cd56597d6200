package service

import (
	"context"
	"fmt"

	"live-tracker/internal/domain"
	"live-tracker/internal/repository"
	apperrors "live-tracker/pkg/errors"
	"live-tracker/pkg/logger"
)

type settingsService struct {
	settings repository.SettingsRepository
	logger   *logger.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(settings repository.SettingsRepository, log *logger.Logger) SettingsService {
	return &settingsService{
		settings: settings,
		logger:   log.Named("settings"),
	}
}

// DisplayOption returns the saved option, or the default when nothing valid is stored
func (s *settingsService) DisplayOption(ctx context.Context) (domain.DisplayOption, error) {
	raw, err := s.settings.GetSetting(ctx, repository.KeyDisplayOption, string(domain.DefaultDisplayOption))
	if err != nil {
		return domain.DefaultDisplayOption, fmt.Errorf("failed to read display option: %w", err)
	}

	option := domain.DisplayOption(raw)
	if !option.Valid() {
		s.logger.WithField("value", raw).Warn("Stored display option is unknown, using default")
		return domain.DefaultDisplayOption, nil
	}
	return option, nil
}

// SetDisplayOption validates and persists option
func (s *settingsService) SetDisplayOption(ctx context.Context, option domain.DisplayOption) error {
	if !option.Valid() {
		return apperrors.NewValidationError("unknown display option", map[string]interface{}{
			"display_option": string(option),
			"allowed":        []string{string(domain.DisplayDashboard), string(domain.DisplayAdminBar)},
		})
	}

	if err := s.settings.SetSetting(ctx, repository.KeyDisplayOption, string(option)); err != nil {
		return fmt.Errorf("failed to save display option: %w", err)
	}

	s.logger.WithField("display_option", string(option)).Info("Display option updated")
	return nil
}
