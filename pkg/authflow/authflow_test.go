package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/authstore"
	"github.com/arvindjonn09/dharma-mini/internal/session"
	"github.com/arvindjonn09/dharma-mini/internal/sessionstore"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2026, 6, 1, 9, 30, 0, 0, time.Local)

type harness struct {
	svc      *Service
	mgr      *session.Manager
	sessions sessionstore.Store
	users    authstore.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := func() time.Time { return fixedNow }

	sessions := sessionstore.NewInMemory(nil)
	users := authstore.NewWithFileStore(filepath.Join(t.TempDir(), "users.json"), nil)
	t.Cleanup(func() { _ = users.Close() })

	mgr, err := session.NewManager(sessions, users, session.Options{Clock: clock})
	require.NoError(t, err)

	svc := New(mgr, users, Config{
		Admin:    AdminCredentials{Username: "root", Password: "s3cret!pass"},
		HashCost: bcrypt.MinCost,
		Clock:    clock,
	})
	return &harness{svc: svc, mgr: mgr, sessions: sessions, users: users}
}

func validSignUp(username string, yob int) SignUpRequest {
	return SignUpRequest{
		Username:    username,
		FirstName:   "Meera",
		LastName:    "",
		YearOfBirth: YearInput(strconv.Itoa(yob)),
		Password:    "lotus#flower",
		Language:    "Kannada",
		Location:    " Mysuru, India ",
	}
}

func TestAdminSignIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.AdminSignIn(ctx, "root", "s3cret!pass")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.View.Role)
	assert.Equal(t, "root", res.View.UserName)
	assert.Nil(t, res.View.AgeGroup)
	assert.NotEmpty(t, res.Token)

	view, err := h.mgr.Restore(ctx, res.Token)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, models.RoleAdmin, view.Role)

	for _, tc := range []struct{ user, pass string }{
		{"root", "wrong"},
		{"admin", "s3cret!pass"},
		{"", ""},
	} {
		_, err := h.svc.AdminSignIn(ctx, tc.user, tc.pass)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestAdminSignIn_DisabledWithoutCredentials(t *testing.T) {
	svc := New(nil, nil, Config{})
	_, err := svc.AdminSignIn(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpThenSignIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	up, err := h.svc.SignUp(ctx, validSignUp("  meera ", 2010))
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, up.View.Role)
	assert.Equal(t, "Meera", up.View.UserName)
	require.NotNil(t, up.View.Profile)
	assert.Equal(t, "meera", up.View.Profile.Username, "username is trimmed")
	assert.Nil(t, up.View.Profile.LastName, "blank last name is stored as null")
	require.NotNil(t, up.View.Profile.Location)
	assert.Equal(t, "Mysuru, India", *up.View.Profile.Location)
	assert.Empty(t, up.View.Profile.Password)

	stored, err := h.users.GetUser(ctx, "meera")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "lotus#flower", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("lotus#flower")))

	in, err := h.svc.SignIn(ctx, SignInRequest{Username: "meera", Password: " lotus#flower "})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, in.View.Role)
	assert.NotEqual(t, up.Token, in.Token, "every sign in mints a fresh token")
}

func TestSignIn_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.SignUp(ctx, validSignUp("meera", 2010))
	require.NoError(t, err)

	_, err = h.svc.SignIn(ctx, SignInRequest{Username: "ravi", Password: "lotus#flower"})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = h.svc.SignIn(ctx, SignInRequest{Username: "meera", Password: "lotus#flowers"})
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	_, err = h.svc.SignIn(ctx, SignInRequest{Username: "meera", Password: "short!"})
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "password", vErr.Field)

	_, err = h.svc.SignIn(ctx, SignInRequest{Password: "lotus#flower"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "username", vErr.Field)
}

func TestSignUp_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(r *SignUpRequest)
		field string
	}{
		{"blank username", func(r *SignUpRequest) { r.Username = "   " }, "username"},
		{"blank first name", func(r *SignUpRequest) { r.FirstName = "" }, "first_name"},
		{"short password", func(r *SignUpRequest) { r.Password = "ab#cd" }, "password"},
		{"password without symbol", func(r *SignUpRequest) { r.Password = "abcdefghij" }, "password"},
		{"padded short password", func(r *SignUpRequest) { r.Password = "  ab#cd   " }, "password"},
		{"year not numeric", func(r *SignUpRequest) { r.YearOfBirth = "19x0" }, "year_of_birth"},
		{"year missing", func(r *SignUpRequest) { r.YearOfBirth = "" }, "year_of_birth"},
		{"year too early", func(r *SignUpRequest) { r.YearOfBirth = "1899" }, "year_of_birth"},
		{"year in the future", func(r *SignUpRequest) { r.YearOfBirth = "2027" }, "year_of_birth"},
		{"unknown language", func(r *SignUpRequest) { r.Language = "Klingon" }, "language"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := validSignUp("meera", 2000)
			tt.edit(&req)

			res, err := h.svc.SignUp(context.Background(), req)
			assert.Nil(t, res)
			var vErr *models.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)

			got, err := h.users.GetUser(context.Background(), "meera")
			require.NoError(t, err)
			assert.Nil(t, got, "nothing is stored on validation failure")
		})
	}
}

func TestSignUp_BoundaryYearsAccepted(t *testing.T) {
	for _, yob := range []int{MinBirthYear, fixedNow.Year()} {
		h := newHarness(t)
		_, err := h.svc.SignUp(context.Background(), validSignUp("meera", yob))
		assert.NoError(t, err, "year %d", yob)
	}
}

func TestSignUp_UsernameTaken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SignUp(ctx, validSignUp("meera", 2000))
	require.NoError(t, err)
	_, err = h.svc.SignUp(ctx, validSignUp("meera", 1990))
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

type racingUsers struct {
	UserStore
}

func (racingUsers) GetUser(context.Context, string) (*models.UserProfile, error) {
	return nil, nil
}

func TestSignUp_ConcurrentRegistrationIsTaken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.SignUp(ctx, validSignUp("meera", 2000))
	require.NoError(t, err)

	// the existence check misses, the insert reports the duplicate
	svc := New(h.mgr, racingUsers{UserStore: h.users}, Config{HashCost: bcrypt.MinCost, Clock: func() time.Time { return fixedNow }})
	_, err = svc.SignUp(ctx, validSignUp("meera", 2000))
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

// The same birth year must yield the same age group at sign up, sign in and restore.
func TestAgeGroupConsistentAcrossFlows(t *testing.T) {
	tests := []struct {
		age  int
		want models.AgeGroup
	}{
		{21, models.AgeGroupChild},
		{22, models.AgeGroupAdult},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.age), func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			yob := fixedNow.Year() - tt.age

			up, err := h.svc.SignUp(ctx, validSignUp("meera", yob))
			require.NoError(t, err)
			in, err := h.svc.SignIn(ctx, SignInRequest{Username: "meera", Password: "lotus#flower"})
			require.NoError(t, err)
			restored, err := h.mgr.Restore(ctx, in.Token)
			require.NoError(t, err)
			require.NotNil(t, restored)

			for _, view := range []models.SessionView{up.View, in.View, *restored} {
				require.NotNil(t, view.AgeGroup)
				assert.Equal(t, tt.want, *view.AgeGroup)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.AdminSignIn(ctx, "root", "s3cret!pass")
	require.NoError(t, err)

	out, err := h.svc.Logout(ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, out.View.IsGuest())
	assert.Empty(t, out.Token)

	_, err = h.sessions.Get(ctx, res.Token)
	assert.True(t, errors.Is(err, sessionstore.ErrSessionNotFound))

	_, err = h.svc.Logout(ctx, res.Token)
	assert.NoError(t, err, "logging out twice is harmless")
}

func TestYearInput_Decoding(t *testing.T) {
	tests := []struct {
		in   string
		want YearInput
		err  bool
	}{
		{`"1990"`, "1990", false},
		{`1990`, "1990", false},
		{`null`, "", false},
		{`true`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var y YearInput
			err := json.Unmarshal([]byte(tt.in), &y)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, y)
		})
	}
}

func TestRegister_StoresWithoutSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	profile, err := h.svc.Register(ctx, validSignUp("meera", 1990))
	require.NoError(t, err)
	assert.Equal(t, "meera", profile.Username)
	assert.Empty(t, profile.Password)

	sessions, err := h.sessions.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = h.svc.Register(ctx, validSignUp("meera", 1990))
	assert.ErrorIs(t, err, ErrUsernameTaken)

	in, err := h.svc.SignIn(ctx, SignInRequest{Username: "meera", Password: "lotus#flower"})
	require.NoError(t, err)
	assert.NotEmpty(t, in.Token)
}
