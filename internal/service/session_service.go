package service

import (
	"context"
	"errors"
	"time"

	"github.com/craftauth/yggdrasil/internal/observability"
	"github.com/craftauth/yggdrasil/internal/repository"
	"github.com/craftauth/yggdrasil/internal/security"
)

// SessionService handles the join handshake between game clients and
// servers.
type SessionService struct {
	tokens     repository.TokenRepository
	profiles   repository.ProfileRepository
	users      repository.UserRepository
	joins      JoinSessionStore
	docs       *ProfileService
	tokenValid time.Duration
	now        func() time.Time
}

func NewSessionService(
	tokens repository.TokenRepository,
	profiles repository.ProfileRepository,
	users repository.UserRepository,
	joins JoinSessionStore,
	docs *ProfileService,
	tokenValid time.Duration,
) *SessionService {
	return &SessionService{
		tokens:     tokens,
		profiles:   profiles,
		users:      users,
		joins:      joins,
		docs:       docs,
		tokenValid: tokenValid,
		now:        time.Now,
	}
}

// Join records that the profile intends to join the server. Unlike
// validate and refresh, join holds tokens to the strict validity horizon:
// a token good enough to refresh may still be too old to enter a server.
func (s *SessionService) Join(ctx context.Context, accessToken, selectedProfile, serverID, remoteIP string) error {
	if serverID == "" {
		observability.RecordJoinSession(ctx, "join", "forbidden")
		return NewIllegalArgument("serverId is required.")
	}

	tokenID, err := security.ParseID(accessToken)
	if err != nil {
		observability.RecordJoinSession(ctx, "join", "forbidden")
		return ErrInvalidToken
	}
	token, err := s.tokens.FindByID(tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			observability.RecordJoinSession(ctx, "join", "forbidden")
			return ErrInvalidToken
		}
		observability.RecordJoinSession(ctx, "join", "error")
		return err
	}
	if !token.ValidAt(s.now(), s.tokenValid) {
		observability.RecordJoinSession(ctx, "join", "forbidden")
		return ErrInvalidToken
	}

	profileID, err := security.ParseID(selectedProfile)
	if err != nil {
		observability.RecordJoinSession(ctx, "join", "forbidden")
		return ErrInvalidProfile
	}
	profile, err := s.profiles.FindByID(profileID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			observability.RecordJoinSession(ctx, "join", "forbidden")
			return ErrInvalidProfile
		}
		observability.RecordJoinSession(ctx, "join", "error")
		return err
	}
	if profile.UserID != token.UserID {
		observability.RecordJoinSession(ctx, "join", "forbidden")
		return ErrInvalidProfile
	}

	user, err := s.users.FindByID(token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordJoinSession(ctx, "join", "forbidden")
			return ErrInvalidToken
		}
		observability.RecordJoinSession(ctx, "join", "error")
		return err
	}
	if user.IsBanned() {
		observability.RecordJoinSession(ctx, "join", "forbidden")
		return ErrUserBanned
	}

	session := &JoinSession{
		ProfileID:   profile.ID,
		AccessToken: token.ID,
		RemoteIP:    remoteIP,
		CreatedAt:   s.now(),
	}
	if err := s.joins.Put(ctx, serverID, session); err != nil {
		observability.RecordJoinSession(ctx, "join", "error")
		return err
	}
	observability.RecordJoinSession(ctx, "join", "success")
	return nil
}

// HasJoined confirms the handshake from the server side. Any mismatch,
// missing or lapsed session answers ErrJoinNotFound; the HTTP layer turns
// that into an empty response, never an error body. Reading does not
// consume the session.
func (s *SessionService) HasJoined(ctx context.Context, username, serverID, remoteIP string) (*ProfileDocument, error) {
	if username == "" || serverID == "" {
		observability.RecordJoinSession(ctx, "has_joined", "miss")
		return nil, ErrJoinNotFound
	}

	session, err := s.joins.Get(ctx, serverID)
	if err != nil {
		if errors.Is(err, ErrJoinNotFound) {
			observability.RecordJoinSession(ctx, "has_joined", "miss")
			return nil, ErrJoinNotFound
		}
		observability.RecordJoinSession(ctx, "has_joined", "error")
		return nil, err
	}

	profile, err := s.profiles.FindByID(session.ProfileID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			observability.RecordJoinSession(ctx, "has_joined", "miss")
			return nil, ErrJoinNotFound
		}
		observability.RecordJoinSession(ctx, "has_joined", "error")
		return nil, err
	}

	// Name comparison is case sensitive, matching how servers report the
	// joining player.
	if profile.Name != username {
		observability.RecordJoinSession(ctx, "has_joined", "miss")
		return nil, ErrJoinNotFound
	}
	// The IP check only applies when the server passes one along.
	if remoteIP != "" && session.RemoteIP != "" && session.RemoteIP != remoteIP {
		observability.RecordJoinSession(ctx, "has_joined", "miss")
		return nil, ErrJoinNotFound
	}

	doc, err := s.docs.Document(ctx, profile, false)
	if err != nil {
		observability.RecordJoinSession(ctx, "has_joined", "error")
		return nil, err
	}
	observability.RecordJoinSession(ctx, "has_joined", "success")
	return doc, nil
}
