package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repuestera/internal/domain"
	"repuestera/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing.
const BcryptCost = 10

var (
	// ErrInvalidCredentials collapses unknown email, wrong password, and
	// deactivated account into one indistinguishable failure so callers
	// cannot enumerate registered accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// RegisterInput carries the self-registration payload.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     *string
	Address   *string
}

// AuthResult is the outcome of a successful registration or login.
type AuthResult struct {
	Token     string
	ExpiresIn int64 // seconds until the token expires
}

// AuthService handles registration, login, and token issuance for both
// principal kinds.
type AuthService interface {
	RegisterCustomer(ctx context.Context, input RegisterInput) (*domain.Customer, *AuthResult, error)
	LoginCustomer(ctx context.Context, email, password string) (*domain.Customer, *AuthResult, error)
	LoginAdmin(ctx context.Context, email, password string) (*domain.Administrator, *AuthResult, error)
}

type authService struct {
	customers repository.CustomerRepository
	admins    repository.AdminRepository
	tokens    TokenService
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(
	customers repository.CustomerRepository,
	admins repository.AdminRepository,
	tokens TokenService,
) AuthService {
	return &authService{
		customers: customers,
		admins:    admins,
		tokens:    tokens,
	}
}

// RegisterCustomer creates a customer account with a hashed password and
// issues a token for the new principal.
func (s *authService) RegisterCustomer(ctx context.Context, input RegisterInput) (*domain.Customer, *AuthResult, error) {
	existing, err := s.customers.FindByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, repository.ErrCustomerNotFound) {
		return nil, nil, fmt.Errorf("failed to check existing customer: %w", err)
	}
	if existing != nil {
		return nil, nil, repository.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	customer := &domain.Customer{
		ID:           uuid.New(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: string(hash),
		Phone:        input.Phone,
		Address:      input.Address,
		Active:       true,
		CreatedAt:    time.Now(),
	}

	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, nil, err
	}

	result, err := s.issueFor(customer.ID, customer.Email, domain.PrincipalTypeCustomer, "")
	if err != nil {
		return nil, nil, err
	}

	return customer, result, nil
}

// LoginCustomer authenticates a customer. Every mismatch collapses to
// ErrInvalidCredentials.
func (s *authService) LoginCustomer(ctx context.Context, email, password string) (*domain.Customer, *AuthResult, error) {
	customer, err := s.customers.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to find customer: %w", err)
	}

	if !customer.Active {
		return nil, nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	result, err := s.issueFor(customer.ID, customer.Email, domain.PrincipalTypeCustomer, "")
	if err != nil {
		return nil, nil, err
	}

	return customer, result, nil
}

// LoginAdmin authenticates an administrator against the administrators table.
// Admin tokens carry the role claim in addition to the type discriminator.
func (s *authService) LoginAdmin(ctx context.Context, email, password string) (*domain.Administrator, *AuthResult, error) {
	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to find administrator: %w", err)
	}

	if !admin.Active {
		return nil, nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	result, err := s.issueFor(admin.ID, admin.Email, domain.PrincipalTypeAdmin, admin.Role)
	if err != nil {
		return nil, nil, err
	}

	return admin, result, nil
}

func (s *authService) issueFor(id uuid.UUID, email, principalType, role string) (*AuthResult, error) {
	ttl := s.tokens.DefaultTTL()

	token, err := s.tokens.Issue(Claims{
		ID:    id,
		Email: email,
		Type:  principalType,
		Role:  role,
	}, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &AuthResult{
		Token:     token,
		ExpiresIn: int64(ttl.Seconds()),
	}, nil
}
