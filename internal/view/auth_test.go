package view_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goerpcheck/internal/config"
	"github.com/dbsmedya/goerpcheck/internal/view"
	"github.com/dbsmedya/goerpcheck/internal/view/viewtest"
)

func loginConfig() config.LoginConfig {
	cfg := config.DefaultConfig().App.Login
	cfg.Username = "admin"
	cfg.Password = "secret"
	return cfg
}

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	login := loginConfig()
	login.SuccessSelector = "#dashboard"

	v := viewtest.New()
	v.Show(login.UsernameSelector)
	v.Show(login.PasswordSelector)
	v.OnClick(login.SubmitSelector, func(v *viewtest.View) {
		v.Hide(login.PasswordSelector)
		v.Show("#dashboard")
	})

	err := view.Login(ctx, v, login, time.Second)
	require.NoError(t, err)

	user, ok := v.Filled(login.UsernameSelector)
	require.True(t, ok)
	assert.Equal(t, "admin", user)
	pass, ok := v.Filled(login.PasswordSelector)
	require.True(t, ok)
	assert.Equal(t, "secret", pass)
	assert.Equal(t, 1, v.CountOn(viewtest.OpClick, login.SubmitSelector))
	assert.Equal(t, "/login", v.URL)
}

func TestLogin_RejectedWithoutSuccessMarker(t *testing.T) {
	login := loginConfig()

	v := viewtest.New()
	v.Show(login.UsernameSelector)
	v.Show(login.PasswordSelector)

	err := view.Login(context.Background(), v, login, time.Second)
	assert.True(t, errors.Is(err, view.ErrLoginRejected))
}

func TestLogin_RejectedWithSuccessMarker(t *testing.T) {
	login := loginConfig()
	login.SuccessSelector = "#dashboard"

	v := viewtest.New()
	v.Show(login.UsernameSelector)
	v.Show(login.PasswordSelector)

	err := view.Login(context.Background(), v, login, time.Second)
	assert.True(t, errors.Is(err, view.ErrLoginRejected))
}

func TestLogin_MissingForm(t *testing.T) {
	v := viewtest.New()

	err := view.Login(context.Background(), v, loginConfig(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username input not found")
	assert.Equal(t, 0, v.Count(viewtest.OpFill))
}

func TestLogin_NoCredentials(t *testing.T) {
	v := viewtest.New()
	login := loginConfig()
	login.Username = ""

	err := view.Login(context.Background(), v, login, time.Second)
	require.Error(t, err)
	assert.Equal(t, 0, v.Count(viewtest.OpNavigate))
}

func TestNeedsLogin(t *testing.T) {
	login := loginConfig()
	v := viewtest.New()
	assert.False(t, view.NeedsLogin(context.Background(), v, login))

	v.Show(login.PasswordSelector)
	assert.True(t, view.NeedsLogin(context.Background(), v, login))
}
