package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/craftauth/yggdrasil/internal/domain"
	"github.com/craftauth/yggdrasil/internal/repository"
	"github.com/craftauth/yggdrasil/internal/security"
	"github.com/craftauth/yggdrasil/internal/texture"
)

// Property is a named profile attribute, optionally signed.
type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// ProfileDocument is the wire shape game clients and servers consume.
// IDs are undashed lowercase hex.
type ProfileDocument struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
}

type texturesPayload struct {
	Timestamp   int64                   `json:"timestamp"`
	ProfileID   string                  `json:"profileId"`
	ProfileName string                  `json:"profileName"`
	Textures    map[string]textureEntry `json:"textures"`
}

type textureEntry struct {
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type ProfileService struct {
	profiles repository.ProfileRepository
	textures repository.TextureRepository
	signer   *texture.Signer
	misses   MissCache
	missTTL  time.Duration
	now      func() time.Time
}

func NewProfileService(profiles repository.ProfileRepository, textures repository.TextureRepository, signer *texture.Signer, misses MissCache, missTTL time.Duration) *ProfileService {
	if misses == nil {
		misses = NewNoopMissCache()
	}
	return &ProfileService{profiles: profiles, textures: textures, signer: signer, misses: misses, missTTL: missTTL, now: time.Now}
}

// Lookup resolves a profile by its undashed UUID and renders its signed
// document. unsigned skips the signature even when a key is loaded.
// Unknown IDs are remembered in the miss cache; the profile endpoint is
// unauthenticated and sees repeated probes for names that never existed.
func (s *ProfileService) Lookup(ctx context.Context, id string, unsigned bool) (*ProfileDocument, error) {
	normalized, err := security.ParseID(id)
	if err != nil {
		return nil, NewIllegalArgument("Invalid profile uuid.")
	}
	if hit, err := s.misses.Get(ctx, MissNamespaceProfile, normalized); err == nil && hit {
		return nil, ErrProfileMissing
	}
	profile, err := s.profiles.FindByID(normalized)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			_ = s.misses.Set(ctx, MissNamespaceProfile, normalized, s.missTTL)
			return nil, ErrProfileMissing
		}
		return nil, err
	}
	return s.Document(ctx, profile, unsigned)
}

// ErrProfileMissing signals an unknown profile; handlers answer 204.
var ErrProfileMissing = errors.New("profile does not exist")

// Document renders the profile with its textures property attached.
func (s *ProfileService) Document(_ context.Context, profile *domain.Profile, unsigned bool) (*ProfileDocument, error) {
	stored, err := s.textures.ListByProfile(profile.ID)
	if err != nil {
		return nil, err
	}

	payload := texturesPayload{
		Timestamp:   s.now().UnixMilli(),
		ProfileID:   profile.ID,
		ProfileName: profile.Name,
		Textures:    make(map[string]textureEntry, len(stored)),
	}
	for _, tex := range stored {
		entry := textureEntry{URL: s.signer.WrapURL(tex.Hash)}
		if tex.Type == domain.TextureSkin && profile.Model == domain.ModelAlex {
			entry.Metadata = map[string]string{"model": "slim"}
		}
		payload.Textures[string(tex.Type)] = entry
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal textures payload: %w", err)
	}
	value := base64.StdEncoding.EncodeToString(raw)

	prop := Property{Name: "textures", Value: value}
	if !unsigned && s.signer.CanSign() {
		sig, err := s.signer.Sign(value)
		if err != nil {
			return nil, err
		}
		prop.Signature = sig
	}

	return &ProfileDocument{
		ID:         profile.ID,
		Name:       profile.Name,
		Properties: []Property{prop},
	}, nil
}
