package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/craftauth/yggdrasil/internal/config"
	"github.com/craftauth/yggdrasil/internal/domain"
	"github.com/craftauth/yggdrasil/internal/email"
	"github.com/craftauth/yggdrasil/internal/observability"
	"github.com/craftauth/yggdrasil/internal/repository"
	"github.com/craftauth/yggdrasil/internal/security"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ProfileRef names a profile in a refresh request. Both fields must match
// the stored profile exactly.
type ProfileRef struct {
	ID   string
	Name string
}

// AuthResult is the outcome of authenticate and refresh.
type AuthResult struct {
	AccessToken       string
	ClientToken       string
	AvailableProfiles []domain.Profile
	SelectedProfile   *domain.Profile
	User              *domain.User
}

type AuthService struct {
	users       repository.UserRepository
	tokens      repository.TokenRepository
	profiles    repository.ProfileRepository
	encryption  security.PasswordEncryption
	verifyCodes *VerifyCodeCache
	messager    email.Messager
	misses      MissCache
	cfg         *config.Config
	now         func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	profiles repository.ProfileRepository,
	encryption security.PasswordEncryption,
	verifyCodes *VerifyCodeCache,
	messager email.Messager,
	misses MissCache,
	cfg *config.Config,
) *AuthService {
	if misses == nil {
		misses = NewNoopMissCache()
	}
	return &AuthService{
		users:       users,
		tokens:      tokens,
		profiles:    profiles,
		encryption:  encryption,
		verifyCodes: verifyCodes,
		messager:    messager,
		misses:      misses,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Authenticate checks credentials and issues a fresh access token. All
// previously issued tokens for the user are revoked first, so a stolen
// token dies the moment its owner logs in again.
func (s *AuthService) Authenticate(ctx context.Context, username, password, clientToken string) (*AuthResult, error) {
	user, err := s.checkCredentials(ctx, username, password)
	if err != nil {
		observability.RecordAuthOperation(ctx, "authenticate", outcomeOf(err))
		return nil, err
	}

	if clientToken == "" {
		clientToken = security.NewID()
	}
	token := &domain.Token{
		ID:          security.NewID(),
		ClientToken: clientToken,
		UserID:      user.ID,
		CreatedAt:   s.now(),
	}
	if err := s.tokens.ReplaceForUser(user.ID, token); err != nil {
		observability.RecordAuthOperation(ctx, "authenticate", "error")
		return nil, err
	}

	user.LastLogged = s.now()
	if err := s.users.Update(user); err != nil {
		observability.RecordAuthOperation(ctx, "authenticate", "error")
		return nil, err
	}

	result, err := s.buildResult(token, user, nil)
	if err != nil {
		observability.RecordAuthOperation(ctx, "authenticate", "error")
		return nil, err
	}
	observability.RecordAuthOperation(ctx, "authenticate", "success")
	return result, nil
}

// Refresh swaps the access token for a fresh one carrying the same client
// token. The old token dies even when it has already lapsed past the
// strict validity horizon, as long as it is not fully invalid yet.
func (s *AuthService) Refresh(ctx context.Context, accessToken, clientToken string, selected *ProfileRef) (*AuthResult, error) {
	token, err := s.lookupToken(accessToken, clientToken)
	if err != nil {
		observability.RecordAuthOperation(ctx, "refresh", outcomeOf(err))
		return nil, err
	}

	user, err := s.users.FindByID(token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthOperation(ctx, "refresh", "forbidden")
			return nil, ErrInvalidToken
		}
		observability.RecordAuthOperation(ctx, "refresh", "error")
		return nil, err
	}
	if user.IsBanned() {
		observability.RecordAuthOperation(ctx, "refresh", "forbidden")
		return nil, ErrUserBanned
	}

	var selectedProfile *domain.Profile
	if selected != nil {
		selectedProfile, err = s.matchProfile(user.ID, selected)
		if err != nil {
			observability.RecordAuthOperation(ctx, "refresh", outcomeOf(err))
			return nil, err
		}
	}

	fresh := &domain.Token{
		ID:          security.NewID(),
		ClientToken: token.ClientToken,
		UserID:      user.ID,
		CreatedAt:   s.now(),
	}
	if err := s.tokens.Rotate(token.ID, fresh); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			// Lost a race against a concurrent refresh or invalidate.
			observability.RecordAuthOperation(ctx, "refresh", "forbidden")
			return nil, ErrInvalidToken
		}
		observability.RecordAuthOperation(ctx, "refresh", "error")
		return nil, err
	}

	result, err := s.buildResult(fresh, user, selectedProfile)
	if err != nil {
		observability.RecordAuthOperation(ctx, "refresh", "error")
		return nil, err
	}
	observability.RecordAuthOperation(ctx, "refresh", "success")
	return result, nil
}

// Validate reports whether the access token is still usable for refresh.
// A token past the invalid horizon is deleted on the way out.
func (s *AuthService) Validate(ctx context.Context, accessToken, clientToken string) error {
	_, err := s.lookupToken(accessToken, clientToken)
	observability.RecordAuthOperation(ctx, "validate", outcomeOf(err))
	return err
}

// Invalidate revokes the access token. It never fails on unknown or
// malformed tokens; revoking an already dead token is a no-op.
func (s *AuthService) Invalidate(ctx context.Context, accessToken string) error {
	id, err := security.ParseID(accessToken)
	if err != nil {
		observability.RecordAuthOperation(ctx, "invalidate", "success")
		return nil
	}
	if err := s.tokens.DeleteByID(id); err != nil && !errors.Is(err, repository.ErrTokenNotFound) {
		observability.RecordAuthOperation(ctx, "invalidate", "error")
		return err
	}
	observability.RecordAuthOperation(ctx, "invalidate", "success")
	return nil
}

// Signout revokes every token the user holds, gated on credentials
// instead of a token.
func (s *AuthService) Signout(ctx context.Context, username, password string) error {
	user, err := s.checkCredentials(ctx, username, password)
	if err != nil {
		observability.RecordAuthOperation(ctx, "signout", outcomeOf(err))
		return err
	}
	if _, err := s.tokens.DeleteByUser(user.ID); err != nil {
		observability.RecordAuthOperation(ctx, "signout", "error")
		return err
	}
	observability.RecordAuthOperation(ctx, "signout", "success")
	return nil
}

// Register creates a user account, optionally gated on an emailed verify
// code, and creates the default profile when configured to.
func (s *AuthService) Register(ctx context.Context, emailAddr, password, nickname, verifyCode string) (*domain.User, error) {
	if !s.cfg.RegistrationEnabled {
		return nil, ErrRegistrationDisabled
	}
	if !emailPattern.MatchString(emailAddr) {
		return nil, NewIllegalArgument("Invalid email address.")
	}
	if !s.cfg.PasswordPattern.MatchString(password) {
		return nil, NewIllegalArgument("Password does not meet the requirements.")
	}
	if !s.cfg.NicknamePattern.MatchString(nickname) {
		return nil, NewIllegalArgument("Invalid nickname.")
	}
	if s.cfg.VerifyCodeEnabled && !s.verifyCodes.Check(emailAddr, verifyCode) {
		return nil, ErrInvalidVerifyCode
	}

	if _, err := s.users.FindByEmail(emailAddr); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.users.FindByNickname(nickname); err == nil {
		return nil, ErrNicknameExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.profiles.FindByName(nickname); err == nil {
		return nil, ErrNicknameExists
	} else if !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:         security.NewID(),
		Email:      emailAddr,
		Password:   s.encryption.ComputeHashed(password).Hash,
		Nickname:   &nickname,
		Permission: domain.PermissionNormal,
		CreatedAt:  now,
		LastLogged: now,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	if s.cfg.RegistrationDefaultProfile {
		profile := &domain.Profile{
			ID:        security.NewID(),
			Name:      nickname,
			UserID:    user.ID,
			Model:     domain.ModelSteve,
			CreatedAt: now,
		}
		if err := s.profiles.Create(profile); err != nil {
			return nil, err
		}
		// A cached miss for this name must not outlive the profile.
		_ = s.misses.InvalidateNamespace(ctx, MissNamespaceProfile)
	}
	observability.RecordAuthOperation(ctx, "register", "success")
	return user, nil
}

// RequestVerify emails a registration code to the address. The code
// minted on the first request stays valid until it expires; repeat
// requests inside the window answer without resending mail. The code is
// dropped again when delivery fails, so a retry mints a fresh one.
func (s *AuthService) RequestVerify(ctx context.Context, emailAddr string) error {
	if !s.cfg.RegistrationEnabled {
		return ErrRegistrationDisabled
	}
	if !s.cfg.VerifyCodeEnabled {
		return ErrVerifyUnavailable
	}
	if !emailPattern.MatchString(emailAddr) {
		return NewIllegalArgument("Invalid email address.")
	}
	if !s.messager.Available() {
		return ErrVerifyUnavailable
	}
	if _, err := s.users.FindByEmail(emailAddr); err == nil {
		return ErrEmailExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	code, fresh := s.verifyCodes.Issue(emailAddr)
	if !fresh {
		observability.RecordAuthOperation(ctx, "verify", "success")
		return nil
	}
	rendered := email.RegisterTemplate.Render(map[string]string{
		"nickname":   emailAddr,
		"email":      emailAddr,
		"verifyCode": code,
	})
	if err := s.messager.SendHTML(ctx, emailAddr, rendered.Subject, rendered.Body); err != nil {
		s.verifyCodes.Drop(emailAddr)
		return fmt.Errorf("deliver verify code: %w", err)
	}
	observability.RecordAuthOperation(ctx, "verify", "success")
	return nil
}

// lookupToken resolves a token within the loose invalid horizon. Tokens
// past it are deleted eagerly instead of waiting for their user's next
// login.
func (s *AuthService) lookupToken(accessToken, clientToken string) (*domain.Token, error) {
	id, err := security.ParseID(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	token, err := s.tokens.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if clientToken != "" && token.ClientToken != clientToken {
		return nil, ErrInvalidToken
	}
	if token.InvalidAt(s.now(), s.cfg.TokenInvalid) {
		if err := s.tokens.DeleteByID(token.ID); err != nil && !errors.Is(err, repository.ErrTokenNotFound) {
			return nil, err
		}
		return nil, ErrInvalidToken
	}
	return token, nil
}

func (s *AuthService) checkCredentials(_ context.Context, username, password string) (*domain.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	hashed, err := s.encryption.Parse(user.Password)
	if err != nil {
		return nil, fmt.Errorf("stored password for %s is malformed: %w", user.ID, err)
	}
	if !s.encryption.Compare(password, hashed) {
		return nil, ErrInvalidCredentials
	}
	if user.IsBanned() {
		return nil, ErrUserBanned
	}
	return user, nil
}

func (s *AuthService) matchProfile(userID string, ref *ProfileRef) (*domain.Profile, error) {
	id, err := security.ParseID(ref.ID)
	if err != nil {
		return nil, ErrInvalidProfile
	}
	profile, err := s.profiles.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrInvalidProfile
		}
		return nil, err
	}
	if profile.UserID != userID || profile.Name != ref.Name {
		return nil, ErrInvalidProfile
	}
	return profile, nil
}

func (s *AuthService) buildResult(token *domain.Token, user *domain.User, selected *domain.Profile) (*AuthResult, error) {
	available, err := s.profiles.ListByUser(user.ID)
	if err != nil {
		return nil, err
	}
	if selected == nil && len(available) == 1 {
		selected = &available[0]
	}
	return &AuthResult{
		AccessToken:       token.ID,
		ClientToken:       token.ClientToken,
		AvailableProfiles: available,
		SelectedProfile:   selected,
		User:              user,
	}, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsForbidden(err) || IsIllegalArgument(err):
		return "forbidden"
	default:
		return "error"
	}
}
