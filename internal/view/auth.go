package view

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/goerpcheck/internal/config"
)

// ErrLoginRejected is returned when the login form is still shown after submit.
var ErrLoginRejected = errors.New("login rejected")

// Login fills and submits the configured login form.
func Login(ctx context.Context, v View, login config.LoginConfig, timeout time.Duration) error {
	if login.Username == "" {
		return fmt.Errorf("login credentials not configured")
	}

	if err := v.Navigate(ctx, login.Path); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	if err := v.WaitForVisible(ctx, login.UsernameSelector, timeout); err != nil {
		return fmt.Errorf("username input not found: %w", err)
	}
	if err := v.Fill(ctx, login.UsernameSelector, login.Username); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}
	if err := v.Fill(ctx, login.PasswordSelector, login.Password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	if err := v.Click(ctx, login.SubmitSelector, ClickOptions{}); err != nil {
		return fmt.Errorf("failed to submit login: %w", err)
	}

	if login.SuccessSelector != "" {
		if err := v.WaitForVisible(ctx, login.SuccessSelector, timeout); err != nil {
			return fmt.Errorf("%w: %v", ErrLoginRejected, err)
		}
		return nil
	}

	// Without a success marker, a still-visible password input means failure
	_ = v.WaitForIdle(ctx, timeout)
	if visible, err := v.IsVisible(ctx, login.PasswordSelector); err == nil && visible {
		return ErrLoginRejected
	}
	return nil
}

// NeedsLogin reports whether the current page shows the login form.
func NeedsLogin(ctx context.Context, v View, login config.LoginConfig) bool {
	visible, err := v.IsVisible(ctx, login.PasswordSelector)
	return err == nil && visible
}
