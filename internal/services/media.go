package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// playbackTokenTTL bounds how long a signed playback URL stays valid. A new
// grant is issued per viewing session; expired links must be re-requested.
const playbackTokenTTL = 2 * time.Hour

// MediaGrant is a short-lived, authorized playback URL for one media
// reference.
type MediaGrant struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MediaService signs and verifies playback access tokens. The token is an
// HS256 JWT binding media_ref, lesson, and learner; the stream endpoint only
// serves requests carrying a live one.
type MediaService struct {
	secret  []byte
	redis   *redis.Client
	baseURL string
	now     func() time.Time
}

func NewMediaService(secret string, redisClient *redis.Client, baseURL string) *MediaService {
	return &MediaService{
		secret:  []byte(secret),
		redis:   redisClient,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// ResolveAccess issues a fresh playback grant for a media reference. Each
// call is a new viewing session; the grant id is tracked in redis so tokens
// from torn-down sessions can be distinguished in logs.
func (s *MediaService) ResolveAccess(ctx context.Context, userID, lessonID uuid.UUID, mediaRef string) (*MediaGrant, error) {
	if mediaRef == "" {
		return nil, &MediaUnavailableError{Message: "Lesson has no media attached"}
	}

	grantID := uuid.New()
	now := s.now()
	expiresAt := now.Add(playbackTokenTTL)

	claims := jwt.MapClaims{
		"grant_id":  grantID.String(),
		"user_id":   userID.String(),
		"lesson_id": lessonID.String(),
		"media_ref": mediaRef,
		"iat":       now.Unix(),
		"exp":       expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign playback token: %w", err)
	}

	if s.redis != nil {
		key := "media_grant:" + grantID.String()
		s.redis.Set(ctx, key, userID.String(), playbackTokenTTL) //nolint:errcheck
	}

	return &MediaGrant{
		URL:       fmt.Sprintf("%s/api/v1/media/stream?token=%s", s.baseURL, token),
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyToken validates a playback token and returns the media reference it
// grants access to.
func (s *MediaService) VerifyToken(tokenStr string) (mediaRef string, userID uuid.UUID, err error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", uuid.Nil, &UnauthorizedError{Message: "Invalid or expired playback token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", uuid.Nil, &UnauthorizedError{Message: "Invalid playback token claims"}
	}
	ref, _ := claims["media_ref"].(string)
	if ref == "" {
		return "", uuid.Nil, &UnauthorizedError{Message: "Playback token carries no media reference"}
	}
	uidStr, _ := claims["user_id"].(string)
	uid, err := uuid.Parse(uidStr)
	if err != nil {
		return "", uuid.Nil, &UnauthorizedError{Message: "Playback token carries no user"}
	}
	return ref, uid, nil
}
