package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"users-api/internal/domain"
	"users-api/internal/repository"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	minPasswordLength = 6
	maxPasswordLength = 72
	loginWindow       = 10 * time.Minute
	loginMaxAttempts  = 5
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRateLimited        = errors.New("rate limited")
)

// UserService coordina reglas de negocio para usuarios: alta, verificación de
// credenciales y el directorio paginado.
type UserService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	limiter    LoginRateLimiter
	validate   *validator.Validate
	bcryptCost int
	dummyHash  []byte
	now        func() time.Time
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, limiter LoginRateLimiter, bcryptCost int) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewLoginRateLimiter(loginWindow, loginMaxAttempts)
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	// Hash contra el que se compara cuando el email no existe, así ambos fallos cuestan lo mismo.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	if err != nil {
		logger.Warn("dummy hash generation failed", zap.Error(err))
	}
	return &UserService{
		logger:     logger,
		users:      users,
		limiter:    limiter,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type CreateUserInput struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6,max=72"`
}

// UpdateUserInput lleva solo los campos presentes en la petición.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
}

type ListUsersInput struct {
	Page   int
	Limit  int
	Search string
}

// UserPage es una ventana del directorio junto con la paginación efectiva.
type UserPage struct {
	Users []domain.User `json:"users"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := s.validate.Struct(input); err != nil {
		return domain.User{}, validationError(err)
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	user, err := s.users.Create(ctx, domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.User{}, mapRepoError(err)
	}
	return user, nil
}

// Authenticate verifica email y contraseña. Email desconocido y contraseña
// incorrecta devuelven el mismo ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if !s.limiter.Allow(emailAddr) {
		s.logger.Warn("login rate limited", zap.String("email", emailAddr))
		return domain.User{}, ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			s.logger.Warn("login rejected", zap.String("email", emailAddr))
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.logger.Warn("login rejected", zap.String("email", emailAddr))
		return domain.User{}, ErrInvalidCredentials
	}

	s.limiter.Reset(emailAddr)
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, input ListUsersInput) (UserPage, error) {
	page, limit := NormalizePage(input.Page, input.Limit)
	// Un skip que no cabe en int queda siempre más allá del final del directorio.
	if page-1 > math.MaxInt/limit {
		return UserPage{Users: []domain.User{}, Page: page, Limit: limit}, nil
	}
	users, err := s.users.List(ctx, domain.ListQuery{
		Skip:   (page - 1) * limit,
		Limit:  limit,
		Search: strings.TrimSpace(input.Search),
	})
	if err != nil {
		return UserPage{}, err
	}
	return UserPage{Users: users, Page: page, Limit: limit}, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.User{}, mapRepoError(err)
	}
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (domain.User, error) {
	id = strings.TrimSpace(id)
	patch := domain.UserPatch{UpdatedAt: s.now()}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return domain.User{}, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		patch.Name = &name
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if err := s.validate.Var(email, "required,email"); err != nil {
			return domain.User{}, fmt.Errorf("%w: email must be a valid address", ErrValidation)
		}
		patch.Email = &email
	}
	if input.Password != nil {
		if err := s.validate.Var(*input.Password, fmt.Sprintf("min=%d,max=%d", minPasswordLength, maxPasswordLength)); err != nil {
			return domain.User{}, fmt.Errorf("%w: password must be between %d and %d characters", ErrValidation, minPasswordLength, maxPasswordLength)
		}
		hash, err := s.hashPassword(*input.Password)
		if err != nil {
			return domain.User{}, err
		}
		patch.PasswordHash = &hash
	}

	if patch.IsEmpty() {
		return s.GetUser(ctx, id)
	}

	user, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return domain.User{}, mapRepoError(err)
	}
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// Ping verifica que el store responde.
func (s *UserService) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

// NormalizePage aplica los valores por defecto a page/limit no positivos y acota limit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func (s *UserService) hashPassword(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		// max cuenta runas; bcrypt limita bytes.
		return "", fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordLength)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashBytes), nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrEmailTaken):
		return ErrEmailTaken
	default:
		return err
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, "; "))
}

// FieldMessage describe un error de validación de campo en inglés llano.
func FieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
