package auth

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/geocoder89/dashboard/internal/apperr"
	"github.com/geocoder89/dashboard/internal/domain/user"
	"github.com/geocoder89/dashboard/internal/observability"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrPasswordMismatch   = apperr.Validation("Passwords do not match", nil)
	ErrUserExists         = apperr.Conflict("User already exists", nil)
	ErrInvalidCredentials = apperr.Authentication("Invalid credentials")
	ErrUnknownUser        = apperr.Authentication("Unknown user")
)

type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string) (user.User, error)
	FindByUsername(ctx context.Context, username string) (user.User, error)
	FindByID(ctx context.Context, id string) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID string) (string, error)
}

// Recorder counts auth outcomes. Nil is allowed.
type Recorder interface {
	ObserveAuth(op, result string)
}

type RegisterInput struct {
	Username        string `json:"username" validate:"required,max=64"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,maxbytes=72"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  user.Public `json:"user"`
}

type Service struct {
	users    UserStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	log      *slog.Logger
	metrics  Recorder
	validate *validator.Validate

	// verified against when the username is unknown so both login
	// failure paths pay for one hash comparison
	dummyHash string
}

func NewService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger, metrics Recorder) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	dummy, err := hasher.Hash(uuid.NewString())

	if err != nil {
		return nil, err
	}

	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		log:       log,
		metrics:   metrics,
		validate:  newValidator(),
		dummyHash: dummy,
	}, nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (user.Public, error) {
	// equality first: nothing else is worth doing for a mismatched pair
	if in.Password != in.ConfirmPassword {
		s.record("register", "password_mismatch")
		return user.Public{}, ErrPasswordMismatch
	}

	if fields := s.validateInput(in); len(fields) > 0 {
		s.record("register", "invalid")
		return user.Public{}, apperr.Validation("Invalid request body", fields)
	}

	hash, err := s.hasher.Hash(in.Password)

	if err != nil {
		s.record("register", "error")
		return user.Public{}, apperr.Internal("Could not create user", err)
	}

	u, err := s.users.Create(ctx, in.Username, in.Email, hash)

	if err != nil {
		// username clash, email clash and store outages all look the same to the client
		observability.LogError(ctx, s.log, "register: create user failed", err, "username", in.Username)
		s.record("register", "conflict")
		return user.Public{}, apperr.Conflict(ErrUserExists.Message, err)
	}

	s.record("register", "ok")
	return u.Public(), nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	var (
		found user.User
		err   error
	)

	if in.Username == "" {
		err = user.ErrNotFound
	} else {
		found, err = s.users.FindByUsername(ctx, in.Username)
	}

	hash := s.dummyHash

	if err == nil {
		hash = found.PasswordHash
	} else if !errors.Is(err, user.ErrNotFound) {
		observability.LogError(ctx, s.log, "login: lookup failed", err, "username", in.Username)
	}

	ok, verr := s.hasher.Verify(in.Password, hash)

	if verr != nil {
		observability.LogError(ctx, s.log, "login: verify failed", verr, "username", in.Username)
	}

	if err != nil || verr != nil || !ok {
		s.record("login", "invalid_credentials")
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateAccessToken(found.ID)

	if err != nil {
		s.record("login", "error")
		return LoginResult{}, apperr.Internal("Could not generate access token", err)
	}

	s.record("login", "ok")
	return LoginResult{Token: token, User: found.Public()}, nil
}

// Profile returns the public fields of the user a verified token belongs to.
func (s *Service) Profile(ctx context.Context, userID string) (user.Public, error) {
	u, err := s.users.FindByID(ctx, userID)

	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			observability.LogError(ctx, s.log, "profile: lookup failed", err, "user_id", userID)
			return user.Public{}, apperr.Internal("Could not load user", err)
		}
		return user.Public{}, ErrUnknownUser
	}

	return u.Public(), nil
}

func (s *Service) record(op, result string) {
	if s.metrics != nil {
		s.metrics.ObserveAuth(op, result)
	}
}

func (s *Service) validateInput(in RegisterInput) []apperr.FieldError {
	err := s.validate.Struct(in)

	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors

	if !errors.As(err, &validationErrors) {
		return []apperr.FieldError{{Field: "body", Rule: "invalid", Message: err.Error()}}
	}

	fields := make([]apperr.FieldError, 0, len(validationErrors))

	for _, fe := range validationErrors {
		fields = append(fields, apperr.FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: apperr.RuleMessage(fe.Tag(), fe.Param()),
		})
	}

	return fields
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names, not Go field names
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return sf.Name
		}
		return name
	})

	// bcrypt limits input by bytes, the builtin max counts runes
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})

	return v
}
