package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Keys used in the key-value store.
const (
	DraftKey = "providerProfile"
	SavedKey = "savedProfiles"
)

// ErrProfileNotFound is returned when no saved profile has the given ID.
var ErrProfileNotFound = errors.New("saved profile not found")

// Store defines the key-value operations the Manager needs.
// Implemented by storage.Store and storage.RedisStore.
type Store interface {
	GetKey(ctx context.Context, key string) (value string, found bool, err error)
	SetKey(ctx context.Context, key, value string) error
	DeleteKey(ctx context.Context, key string) error
	// UpdateKey atomically replaces the value at key with fn's result.
	UpdateKey(ctx context.Context, key string, fn func(current string, found bool) (string, error)) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager persists drafts and finalized profiles in a key-value store.
// It is safe for concurrent use as long as the Store is.
type Manager struct {
	store  Store
	clock  Clock
	newID  func() string
	logger *slog.Logger
}

// NewManager creates a Manager backed by store.
func NewManager(store Store) *Manager {
	return NewManagerWithClock(store, realClock{})
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store Store, clock Clock) *Manager {
	return &Manager{
		store:  store,
		clock:  clock,
		newID:  newProfileID,
		logger: slog.Default(),
	}
}

// newProfileID returns a time-ordered UUID so IDs sort by submission.
func newProfileID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// LoadDraft reads the in-progress draft. A missing draft yields an empty
// record; a malformed one is logged and also yields an empty record.
func (m *Manager) LoadDraft(ctx context.Context) (Record, bool, error) {
	raw, found, err := m.store.GetKey(ctx, DraftKey)
	if err != nil {
		return Record{}, false, fmt.Errorf("loading draft: %w", err)
	}
	if !found {
		return NewRecord(), false, nil
	}

	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		m.logger.Warn("malformed profile draft, starting empty", "key", DraftKey, "error", err)
		return NewRecord(), false, nil
	}
	r.normalize()
	return r, true, nil
}

// SaveDraft stores r as the in-progress draft.
func (m *Manager) SaveDraft(ctx context.Context, r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling draft: %w", err)
	}
	if err := m.store.SetKey(ctx, DraftKey, string(b)); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return nil
}

// ClearDraft removes the in-progress draft.
func (m *Manager) ClearDraft(ctx context.Context) error {
	if err := m.store.DeleteKey(ctx, DraftKey); err != nil {
		return fmt.Errorf("clearing draft: %w", err)
	}
	return nil
}

// Restore starts a session from the stored draft.
func (m *Manager) Restore(ctx context.Context, opts ...SessionOption) (*Session, error) {
	r, _, err := m.LoadDraft(ctx)
	if err != nil {
		return nil, err
	}
	opts = append([]SessionOption{WithRecord(r), WithLogger(m.logger)}, opts...)
	return NewSession(m, opts...), nil
}

// Finalize appends r to the saved collection with a fresh ID and timestamp,
// then clears the draft. Once the append succeeds Finalize succeeds; a draft
// that cannot be deleted is only logged.
func (m *Manager) Finalize(ctx context.Context, r Record) (SavedProfile, error) {
	saved := SavedProfile{
		Record:      r.Clone(),
		ID:          m.newID(),
		SubmittedAt: m.clock.Now().UTC(),
	}

	err := m.store.UpdateKey(ctx, SavedKey, func(current string, found bool) (string, error) {
		list, err := decodeSaved(current, found)
		if err != nil {
			return "", err
		}
		list = append(list, saved)
		b, err := json.Marshal(list)
		if err != nil {
			return "", fmt.Errorf("marshalling saved profiles: %w", err)
		}
		return string(b), nil
	})
	if err != nil {
		return SavedProfile{}, fmt.Errorf("appending saved profile: %w", err)
	}

	// The append is committed; a stale draft must not turn this into a retry.
	if err := m.ClearDraft(ctx); err != nil {
		m.logger.Warn("profile saved but draft not cleared", "id", saved.ID, "error", err)
	}

	m.logger.Info("profile saved", "id", saved.ID)
	return saved, nil
}

// ListSaved returns all finalized profiles in submission order.
func (m *Manager) ListSaved(ctx context.Context) ([]SavedProfile, error) {
	raw, found, err := m.store.GetKey(ctx, SavedKey)
	if err != nil {
		return nil, fmt.Errorf("loading saved profiles: %w", err)
	}
	return decodeSaved(raw, found)
}

// GetSaved returns the finalized profile with the given ID.
func (m *Manager) GetSaved(ctx context.Context, id string) (SavedProfile, error) {
	list, err := m.ListSaved(ctx)
	if err != nil {
		return SavedProfile{}, err
	}
	for _, p := range list {
		if p.ID == id {
			return p, nil
		}
	}
	return SavedProfile{}, ErrProfileNotFound
}

func decodeSaved(raw string, found bool) ([]SavedProfile, error) {
	if !found || strings.TrimSpace(raw) == "" {
		return []SavedProfile{}, nil
	}
	var list []SavedProfile
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SavedKey, err)
	}
	for i := range list {
		list[i].Record.normalize()
	}
	return list, nil
}

// maxSummaryChars caps one-line summaries used in listings.
const maxSummaryChars = 160

// Summarize returns a compact one-line description of r.
func Summarize(r Record) string {
	var parts []string

	if name := strings.TrimSpace(r.Name); name != "" {
		parts = append(parts, name)
	}
	if r.YearsOfExperience != "" {
		parts = append(parts, fmt.Sprintf("%s yrs", r.YearsOfExperience))
	}
	if len(r.Specializations) > 0 {
		specs := append([]string(nil), r.Specializations...)
		sort.Strings(specs)
		parts = append(parts, strings.Join(specs, ", "))
	}
	if r.Email != "" {
		parts = append(parts, r.Email)
	}

	if len(parts) == 0 {
		return "(empty profile)"
	}

	summary := strings.Join(parts, " · ")
	if len(summary) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		summary = summary[:end] + "…"
	}
	return summary
}
