// Package token issues the bearer credentials the three principal kinds
// authenticate with: users log in with a password, nodes with an API key,
// and a node mints container credentials for the algorithm containers it
// runs. Container credentials embed their whole identity in the claims and
// are the only kind without a persisted record behind them.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/consortia/consortia/internal/platform/httpx"
	"github.com/consortia/consortia/internal/principal"
)

// Typed issuance failures.
var (
	ErrInvalidLogin  = fmt.Errorf("%w: invalid username or password", httpx.ErrAuth)
	ErrAccountLocked = fmt.Errorf("%w: account temporarily locked", httpx.ErrAuth)
	ErrTaskNotActive = fmt.Errorf("%w: node has no active assignment for this task", httpx.ErrAuthorizationDenied)
)

// UserAccount is the login view of a user identity.
type UserAccount struct {
	ID                  int64
	OrganizationID      int64
	Username            string
	PasswordHash        string
	FailedLoginAttempts int
	LastLoginAttempt    time.Time
}

// NodeAccount is the login view of a node identity.
type NodeAccount struct {
	ID             int64
	OrganizationID int64
	Name           string
}

// Repository defines the persistence operations token issuance needs.
type Repository interface {
	FindUserByUsername(ctx context.Context, username string) (*UserAccount, error)
	UpdateLoginState(ctx context.Context, userID int64, failedAttempts int, lastAttempt time.Time) error
	FindNodeByAPIKey(ctx context.Context, apiKey string) (*NodeAccount, error)
	// NodeAssignedToTask reports whether the node's organization
	// participates in the task and the task has not completed.
	NodeAssignedToTask(ctx context.Context, nodeID, taskID int64) (bool, error)
}

// Service issues credentials.
type Service struct {
	repo        Repository
	codec       *principal.Codec
	logger      *slog.Logger
	maxAttempts int
	lockout     time.Duration
}

// NewService constructs a Service. maxAttempts and lockout bound the
// wrong-password lockout window for user logins.
func NewService(repo Repository, codec *principal.Codec, logger *slog.Logger, maxAttempts int, lockout time.Duration) *Service {
	return &Service{repo: repo, codec: codec, logger: logger, maxAttempts: maxAttempts, lockout: lockout}
}

// UserToken authenticates a username/password pair and returns a signed
// user credential. Wrong passwords count toward a temporary lockout;
// lookup failure and password failure are indistinguishable to the caller.
func (s *Service) UserToken(ctx context.Context, username, password string) (string, error) {
	account, err := s.repo.FindUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", ErrInvalidLogin
	}
	if s.isBlocked(account) {
		s.logger.Warn("login attempt on locked account", slog.String("username", username))
		return "", ErrAccountLocked
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		if err := s.repo.UpdateLoginState(ctx, account.ID, account.FailedLoginAttempts+1, time.Now().UTC()); err != nil {
			s.logger.Error("record failed login", slog.Any("error", err))
		}
		return "", ErrInvalidLogin
	}
	if err := s.repo.UpdateLoginState(ctx, account.ID, 0, time.Now().UTC()); err != nil {
		s.logger.Error("reset login state", slog.Any("error", err))
	}
	claims := principal.Claims{
		Kind:           string(principal.KindUser),
		OrganizationID: account.OrganizationID,
	}
	claims.Subject = strconv.FormatInt(account.ID, 10)
	return s.codec.Sign(claims, uuid.NewString())
}

// NodeToken exchanges a node API key for a signed node credential.
func (s *Service) NodeToken(ctx context.Context, apiKey string) (string, error) {
	if apiKey == "" {
		return "", ErrInvalidLogin
	}
	node, err := s.repo.FindNodeByAPIKey(ctx, apiKey)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", ErrInvalidLogin
	}
	claims := principal.Claims{
		Kind:           string(principal.KindNode),
		OrganizationID: node.OrganizationID,
	}
	claims.Subject = strconv.FormatInt(node.ID, 10)
	return s.codec.Sign(claims, uuid.NewString())
}

// ContainerToken mints a container credential on behalf of a node. The node
// must have an active assignment for the task; the resulting credential is
// scoped to exactly that (organization, node, task) and resolves without
// any storage lookup.
func (s *Service) ContainerToken(ctx context.Context, node principal.Principal, taskID int64) (string, error) {
	if node.Kind != principal.KindNode {
		return "", principal.ErrKindNotAllowed
	}
	assigned, err := s.repo.NodeAssignedToTask(ctx, node.NodeID, taskID)
	if err != nil {
		return "", err
	}
	if !assigned {
		return "", ErrTaskNotActive
	}
	return s.codec.Sign(principal.Claims{
		Kind:           string(principal.KindContainer),
		OrganizationID: node.OrganizationID,
		NodeID:         node.NodeID,
		TaskID:         taskID,
	}, uuid.NewString())
}

func (s *Service) isBlocked(account *UserAccount) bool {
	if account.FailedLoginAttempts < s.maxAttempts {
		return false
	}
	if account.LastLoginAttempt.IsZero() {
		return false
	}
	return time.Since(account.LastLoginAttempt) < s.lockout
}
