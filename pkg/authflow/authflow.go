// Package authflow holds the sign-in, sign-up and logout commands. Each command
// validates its input, talks to the credential store, issues or destroys a
// session and returns the resulting view state.
package authflow

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/db"
	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/internal/metrics"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
	"github.com/arvindjonn09/dharma-mini/pkg/models/passwd"
	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	ErrAccountNotFound    = errors.New("no account found with that username, please sign up first")
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrUsernameTaken      = errors.New("that username is already taken")
)

// Languages offered at sign up.
var Languages = []string{"English", "Hindi", "Telugu", "Tamil", "Kannada", "Malayalam", "Gujarati", "Marathi", "Other"}

const MinBirthYear = 1900

// SessionIssuer creates and destroys sessions.
type SessionIssuer interface {
	Create(ctx context.Context, role models.Role, username string) (string, error)
	Destroy(ctx context.Context, token string) error
}

// UserStore is the part of the credential store used by the flows.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*models.UserProfile, error)
	CreateUser(ctx context.Context, profile models.UserProfile) (*models.UserProfile, error)
}

// AdminCredentials are the single configured portal administrator.
// Admin sign in is disabled while either field is empty.
type AdminCredentials struct {
	Username string
	Password string
}

type Config struct {
	Admin    AdminCredentials
	HashCost int // bcrypt cost, passwd.DefaultCost when zero
	Clock    func() time.Time
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Result is the view state after a command, plus the token to hand back to the client.
type Result struct {
	View  models.SessionView
	Token string
}

type Service struct {
	sessions SessionIssuer
	users    UserStore
	admin    AdminCredentials
	hashCost int
	validate *validator.Validate
	now      func() time.Time
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func New(sessions SessionIssuer, users UserStore, cfg Config) *Service {
	if cfg.HashCost == 0 {
		cfg.HashCost = passwd.DefaultCost
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		sessions: sessions,
		users:    users,
		admin:    cfg.Admin,
		hashCost: cfg.HashCost,
		validate: newValidator(),
		now:      cfg.Clock,
		log:      logutil.OrDiscard(cfg.Logger),
		metrics:  cfg.Metrics,
	}
}

// AdminSignIn checks the configured administrator credentials and starts an admin session.
func (s *Service) AdminSignIn(ctx context.Context, username, password string) (*Result, error) {
	if s.admin.Username == "" || s.admin.Password == "" {
		s.log.Warn("admin sign in attempted but no admin credentials are configured")
		s.metrics.AuthAttempt("admin", "disabled")
		return nil, ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
	if !userOK || !passOK {
		s.log.Info("admin sign in rejected")
		s.metrics.AuthAttempt("admin", "invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, models.RoleAdmin, username)
	if err != nil {
		s.metrics.AuthAttempt("admin", "error")
		return nil, err
	}

	s.metrics.AuthAttempt("admin", "ok")
	return &Result{
		View: models.SessionView{
			Role:     models.RoleAdmin,
			UserName: username,
			Token:    token,
		},
		Token: token,
	}, nil
}

type SignInRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SignIn authenticates a registered user and starts a user session.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*Result, error) {
	if err := s.validateStruct(req); err != nil {
		s.metrics.AuthAttempt("signin", "invalid")
		return nil, err
	}
	if err := passwd.ValidatePolicy(req.Password); err != nil {
		s.metrics.AuthAttempt("signin", "invalid")
		return nil, models.NewFieldValidationError("password", err.Error())
	}

	profile, err := s.users.GetUser(ctx, req.Username)
	if err != nil {
		s.metrics.AuthAttempt("signin", "error")
		return nil, logutil.LogAndWrapErr(s.log, "failed to look up user", err, "username", req.Username)
	}
	if profile == nil {
		s.metrics.AuthAttempt("signin", "not_found")
		return nil, ErrAccountNotFound
	}
	if !passwd.CheckPasswordHash(strings.TrimSpace(req.Password), profile.Password) {
		s.log.Info("incorrect password", "username", req.Username)
		s.metrics.AuthAttempt("signin", "incorrect_password")
		return nil, ErrIncorrectPassword
	}

	return s.startUserSession(ctx, "signin", req.Username, profile)
}

// SignUpRequest carries the sign up form. Text fields are trimmed before validation.
// YearOfBirth accepts a JSON number or a numeric string.
type SignUpRequest struct {
	Username    string    `json:"username" validate:"required,max=64"`
	FirstName   string    `json:"first_name" validate:"required,max=100"`
	LastName    string    `json:"last_name" validate:"max=100"`
	YearOfBirth YearInput `json:"year_of_birth" validate:"required,numeric"`
	Password    string    `json:"password" validate:"required"`
	Language    string    `json:"language" validate:"required,language"`
	Location    string    `json:"location" validate:"max=200"`
}

// SignUp registers a new account and starts a user session for it.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*Result, error) {
	created, err := s.register(ctx, "signup", req)
	if err != nil {
		return nil, err
	}
	return s.startUserSession(ctx, "signup", created.Username, created)
}

// Register validates and stores a new account without starting a session.
// Operators use it to create accounts from the command line.
func (s *Service) Register(ctx context.Context, req SignUpRequest) (*models.UserProfile, error) {
	created, err := s.register(ctx, "register", req)
	if err != nil {
		return nil, err
	}
	s.metrics.AuthAttempt("register", "ok")
	return created.Public(), nil
}

func (s *Service) register(ctx context.Context, flow string, req SignUpRequest) (*models.UserProfile, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.YearOfBirth = YearInput(strings.TrimSpace(string(req.YearOfBirth)))
	req.Location = strings.TrimSpace(req.Location)

	if err := s.validateStruct(req); err != nil {
		s.metrics.AuthAttempt(flow, "invalid")
		return nil, err
	}
	if err := passwd.ValidatePolicy(req.Password); err != nil {
		s.metrics.AuthAttempt(flow, "invalid")
		return nil, models.NewFieldValidationError("password", err.Error())
	}

	year, err := strconv.Atoi(string(req.YearOfBirth))
	if err != nil || year < MinBirthYear || year > s.now().Year() {
		s.metrics.AuthAttempt(flow, "invalid")
		return nil, models.NewFieldValidationError("year_of_birth", "please enter a valid birth year (YYYY)")
	}

	existing, err := s.users.GetUser(ctx, req.Username)
	if err != nil {
		s.metrics.AuthAttempt(flow, "error")
		return nil, logutil.LogAndWrapErr(s.log, "failed to check username", err, "username", req.Username)
	}
	if existing != nil {
		s.metrics.AuthAttempt(flow, "username_taken")
		return nil, ErrUsernameTaken
	}

	hash, err := passwd.HashPasswordWithCost(strings.TrimSpace(req.Password), s.hashCost)
	if err != nil {
		s.metrics.AuthAttempt(flow, "error")
		return nil, logutil.LogAndWrapErr(s.log, "failed to hash password", err)
	}

	profile := models.UserProfile{
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    optional(req.LastName),
		YearOfBirth: models.KnownBirthYear(year),
		Language:    req.Language,
		Location:    optional(req.Location),
		Password:    hash,
	}
	created, err := s.users.CreateUser(ctx, profile)
	if db.IsDuplicateKey(err) {
		// registered concurrently since the check above
		s.metrics.AuthAttempt(flow, "username_taken")
		return nil, ErrUsernameTaken
	}
	if err != nil {
		s.metrics.AuthAttempt(flow, "error")
		return nil, logutil.LogAndWrapErr(s.log, "failed to create user", err, "username", req.Username)
	}
	s.log.Info("user registered", "username", created.Username, "language", created.Language)
	return created, nil
}

// Logout destroys the session and returns the guest view.
func (s *Service) Logout(ctx context.Context, token string) (*Result, error) {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		return nil, err
	}
	return &Result{View: models.GuestView()}, nil
}

func (s *Service) startUserSession(ctx context.Context, flow, username string, profile *models.UserProfile) (*Result, error) {
	token, err := s.sessions.Create(ctx, models.RoleUser, username)
	if err != nil {
		s.metrics.AuthAttempt(flow, "error")
		return nil, err
	}
	s.metrics.AuthAttempt(flow, "ok")

	return &Result{
		View: models.SessionView{
			Role:     models.RoleUser,
			UserName: profile.DisplayName(),
			AgeGroup: models.DeriveAgeGroup(profile.YearOfBirth, s.now()),
			Profile:  profile.Public(),
			Token:    token,
		},
		Token: token,
	}, nil
}

// YearInput is a year typed into a form. It decodes from a JSON string or number.
type YearInput string

func (y *YearInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*y = YearInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("year_of_birth: %w", err)
	}
	*y = YearInput(n.String())
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
