package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/authedge/authedge/internal/store"
	"github.com/authedge/authedge/params"
)

// AuthCodeRecordVersion is bumped whenever a field is added to AuthCode so
// old records can be told apart from new ones.
const AuthCodeRecordVersion = 1

// AuthCode is the ephemeral record an authorization code is bound to. It is
// deleted atomically on consumption, so a code can be exchanged at most once.
type AuthCode struct {
	Version         int64  `redis:"version"`
	UserID          string `redis:"user_id"`
	ClientID        string `redis:"client_id"`
	RedirectURI     string `redis:"redirect_uri"`
	Scope           string `redis:"scope"`
	State           string `redis:"state"`
	CodeChallenge   string `redis:"code_challenge"`
	ChallengeMethod string `redis:"challenge_method"`
	CreatedAt       int64  `redis:"created_at"`
}

type IssueOptions struct {
	UserID          string
	ClientID        string
	RedirectURI     string
	Scope           string
	State           string
	CodeChallenge   string
	ChallengeMethod string
}

// CodeManager issues single-use authorization codes and consumes them during
// token exchange.
type CodeManager struct {
	codeStore store.Store[AuthCode]
	storage   store.Storage
}

func NewCodeManager(storage store.Storage) *CodeManager {
	return &CodeManager{
		codeStore: store.New[AuthCode](storage, params.AuthCodeKeyPrefix),
		storage:   storage,
	}
}

func generateCode() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (m *CodeManager) Issue(ctx context.Context, opts IssueOptions) (string, error) {
	if !validChallengeMethod(opts.ChallengeMethod) {
		return "", ErrUnsupportedChallengeMethod
	}
	// RFC 7636: an absent method with a present challenge defaults to plain
	if opts.CodeChallenge != "" && opts.ChallengeMethod == "" {
		opts.ChallengeMethod = ChallengeMethodPlain
	}
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	rec := AuthCode{
		Version:         AuthCodeRecordVersion,
		UserID:          opts.UserID,
		ClientID:        opts.ClientID,
		RedirectURI:     opts.RedirectURI,
		Scope:           opts.Scope,
		State:           opts.State,
		CodeChallenge:   opts.CodeChallenge,
		ChallengeMethod: opts.ChallengeMethod,
		CreatedAt:       time.Now().UnixMilli(),
	}
	if err := m.codeStore.Set(ctx, code, rec, params.AuthCodeExpiration); err != nil {
		return "", err
	}
	if err := m.indexCode(ctx, params.UserCodeIndexKeyPrefix+opts.UserID, code); err != nil {
		return "", err
	}
	if err := m.indexCode(ctx, params.ClientCodeIndexKeyPrefix+opts.ClientID, code); err != nil {
		return "", err
	}
	return code, nil
}

func (m *CodeManager) indexCode(ctx context.Context, key, code string) error {
	if err := m.storage.SetAttr(ctx, key, code, 1); err != nil {
		return err
	}
	// the index only needs to outlive the newest code it references
	return m.storage.Expire(ctx, key, params.AuthCodeExpiration)
}

// Consume atomically deletes the code's record and returns its bound data.
// A code that was never issued, already consumed, or expired yields
// ErrCodeInvalid. The delete happens before the data is returned, so no two
// callers can both succeed for the same code.
func (m *CodeManager) Consume(ctx context.Context, code string) (*AuthCode, error) {
	rec, err := m.codeStore.Remove(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCodeInvalid
	}
	if err != nil {
		return nil, err
	}
	m.storage.DelAttr(ctx, params.UserCodeIndexKeyPrefix+rec.UserID, code)
	m.storage.DelAttr(ctx, params.ClientCodeIndexKeyPrefix+rec.ClientID, code)
	return rec, nil
}

// PeekValid reports whether the code currently exists without consuming it.
func (m *CodeManager) PeekValid(ctx context.Context, code string) bool {
	_, err := m.codeStore.Get(ctx, code)
	return err == nil
}

func (m *CodeManager) RevokeForUser(ctx context.Context, userID string) error {
	return m.revokeIndexed(ctx, params.UserCodeIndexKeyPrefix+userID)
}

func (m *CodeManager) RevokeForClient(ctx context.Context, clientID string) error {
	return m.revokeIndexed(ctx, params.ClientCodeIndexKeyPrefix+clientID)
}

func (m *CodeManager) revokeIndexed(ctx context.Context, indexKey string) error {
	codes, err := m.storage.Attrs(ctx, indexKey)
	if err != nil {
		return err
	}
	for code := range codes {
		if err := m.codeStore.Delete(ctx, code); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	if err := m.storage.Delete(ctx, indexKey); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
