// Package story owns the 24 hour story lifecycle: publishing, visibility,
// scheduled and lazy expiry, and the startup reaper.
package story

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"collegovibe/internal/config"
	"collegovibe/internal/dbmongo"
	"collegovibe/internal/metrics"
	"collegovibe/internal/worker"
)

// ErrNoActiveStories is returned by ViewStories when the owner has nothing
// left to show. HTTP callers redirect to the feed.
var ErrNoActiveStories = errors.New("no active stories")

const expiryTimeout = 30 * time.Second

// Owners is the slice of the identity store the lifecycle needs.
type Owners interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*dbmongo.User, error)
	AddRef(ctx context.Context, id primitive.ObjectID, field dbmongo.RefField, ref primitive.ObjectID) (bool, error)
	RemoveRef(ctx context.Context, id primitive.ObjectID, field dbmongo.RefField, ref primitive.ObjectID) (bool, error)
}

// MediaRemover deletes an uploaded image by its deletion token.
type MediaRemover interface {
	DeleteFile(ctx context.Context, fileID string) error
}

// Dispatcher runs background work without blocking the caller.
type Dispatcher interface {
	Submit(name string, t worker.Task) bool
}

// Manager arms one timer per live story and funnels both expiry triggers
// through the same idempotent delete-and-unlink path.
type Manager struct {
	stories  StoryRepository
	owners   Owners
	media    MediaRemover
	tasks    Dispatcher
	clock    clockwork.Clock
	lifetime time.Duration
	metrics  *metrics.Collector
	log      zerolog.Logger

	mu       sync.Mutex
	timers   map[primitive.ObjectID]clockwork.Timer
	inflight map[primitive.ObjectID]struct{}
	closed   bool
}

func NewManager(
	cfg *config.Config,
	stories StoryRepository,
	owners Owners,
	media MediaRemover,
	tasks Dispatcher,
	clock clockwork.Clock,
	m *metrics.Collector,
	log zerolog.Logger,
) *Manager {
	lifetime := cfg.Story.Lifetime
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	if m == nil {
		m = metrics.NewCollector(nil)
	}
	return &Manager{
		stories:  stories,
		owners:   owners,
		media:    media,
		tasks:    tasks,
		clock:    clock,
		lifetime: lifetime,
		metrics:  m,
		log:      log,
		timers:   make(map[primitive.ObjectID]clockwork.Timer),
		inflight: make(map[primitive.ObjectID]struct{}),
	}
}

// IsVisible uses the exact elapsed duration, never a rounded age label.
func (m *Manager) IsVisible(s *dbmongo.Story, now time.Time) bool {
	return now.Sub(s.CreatedAt) < m.lifetime
}

// Publish stores a new story, links it to its owner and arms its expiry timer.
// If the owner link fails the story document is removed again.
func (m *Manager) Publish(ctx context.Context, owner primitive.ObjectID, image, mediaToken string) (*dbmongo.Story, error) {
	s := &dbmongo.Story{
		Owner:      owner,
		Image:      image,
		MediaToken: mediaToken,
		CreatedAt:  m.clock.Now().UTC(),
	}
	if err := m.stories.CreateStory(ctx, s); err != nil {
		return nil, err
	}
	if _, err := m.owners.AddRef(ctx, owner, dbmongo.RefStories, s.ID); err != nil {
		if _, rbErr := m.stories.DeleteStory(ctx, s.ID); rbErr != nil {
			m.log.Error().Err(rbErr).Str("story", s.ID.Hex()).Msg("failed to roll back story")
		}
		return nil, err
	}

	m.Arm(s)
	m.log.Info().Str("story", s.ID.Hex()).Str("owner", owner.Hex()).Msg("story published")
	return s, nil
}

// Arm schedules the expiry of s at CreatedAt+lifetime. Arming an already
// armed story is a no-op; an already expired story is expired in the background.
func (m *Manager) Arm(s *dbmongo.Story) {
	remaining := s.CreatedAt.Add(m.lifetime).Sub(m.clock.Now())
	if remaining <= 0 {
		m.expireAsync(s, metrics.TriggerScheduled)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, armed := m.timers[s.ID]; armed {
		return
	}

	story := *s
	m.timers[s.ID] = m.clock.AfterFunc(remaining, func() { m.fire(&story) })
	m.metrics.ArmedTimers.Inc()
}

func (m *Manager) fire(s *dbmongo.Story) {
	m.mu.Lock()
	if _, armed := m.timers[s.ID]; !armed {
		m.mu.Unlock()
		return
	}
	delete(m.timers, s.ID)
	m.metrics.ArmedTimers.Dec()
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), expiryTimeout)
	defer cancel()
	_ = m.expire(ctx, s, metrics.TriggerScheduled)
}

// FilterVisible returns the stories still inside their lifetime, in input
// order. Every expired story is handed to the background expiry path.
func (m *Manager) FilterVisible(stories []*dbmongo.Story) []*dbmongo.Story {
	now := m.clock.Now()
	visible := make([]*dbmongo.Story, 0, len(stories))
	for _, s := range stories {
		if m.IsVisible(s, now) {
			visible = append(visible, s)
			continue
		}
		m.expireAsync(s, metrics.TriggerLazy)
	}
	return visible
}

// ViewStories returns the owner's visible stories. Story refs that no longer
// resolve are unlinked in the background.
func (m *Manager) ViewStories(ctx context.Context, ownerID primitive.ObjectID) (*dbmongo.User, []*dbmongo.Story, error) {
	owner, err := m.owners.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	stories, err := m.stories.GetStoriesByIDs(ctx, owner.Stories)
	if err != nil {
		return nil, nil, err
	}

	if len(stories) < len(owner.Stories) {
		m.unlinkDangling(owner, stories)
	}

	visible := m.FilterVisible(stories)
	if len(visible) == 0 {
		return owner, nil, ErrNoActiveStories
	}
	return owner, visible, nil
}

func (m *Manager) unlinkDangling(owner *dbmongo.User, found []*dbmongo.Story) {
	present := make(map[primitive.ObjectID]bool, len(found))
	for _, s := range found {
		present[s.ID] = true
	}
	for _, ref := range owner.Stories {
		if present[ref] {
			continue
		}
		ref := ref
		m.tasks.Submit("story-unlink", func(ctx context.Context) {
			if _, err := m.owners.RemoveRef(ctx, owner.ID, dbmongo.RefStories, ref); err != nil {
				m.log.Warn().Err(err).Str("story", ref.Hex()).Msg("failed to unlink dangling story ref")
			}
		})
	}
}

func (m *Manager) expireAsync(s *dbmongo.Story, trigger string) {
	story := *s
	task := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, expiryTimeout)
		defer cancel()
		_ = m.expire(ctx, &story, trigger)
	}
	if m.tasks.Submit("story-expire", task) {
		return
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if !closed {
		go task(context.Background())
	}
}

// Expire deletes s and unlinks it from its owner. A story or owner that is
// already gone counts as success. Concurrent calls for the same story collapse
// into one.
func (m *Manager) Expire(ctx context.Context, s *dbmongo.Story) error {
	return m.expire(ctx, s, metrics.TriggerLazy)
}

func (m *Manager) expire(ctx context.Context, s *dbmongo.Story, trigger string) error {
	m.mu.Lock()
	if _, busy := m.inflight[s.ID]; busy {
		m.mu.Unlock()
		return nil
	}
	m.inflight[s.ID] = struct{}{}
	if t, armed := m.timers[s.ID]; armed {
		t.Stop()
		delete(m.timers, s.ID)
		m.metrics.ArmedTimers.Dec()
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, s.ID)
		m.mu.Unlock()
	}()

	log := m.log.With().Str("story", s.ID.Hex()).Str("owner", s.Owner.Hex()).Str("trigger", trigger).Logger()

	deleted, err := m.stories.DeleteStory(ctx, s.ID)
	if err != nil {
		m.metrics.StoryExpirations.WithLabelValues(trigger, "failed").Inc()
		log.Error().Err(err).Msg("failed to delete expired story")
		return err
	}
	if _, err := m.owners.RemoveRef(ctx, s.Owner, dbmongo.RefStories, s.ID); err != nil {
		m.metrics.StoryExpirations.WithLabelValues(trigger, "failed").Inc()
		log.Error().Err(err).Msg("failed to unlink expired story")
		return err
	}

	if !deleted {
		m.metrics.StoryExpirations.WithLabelValues(trigger, "already_gone").Inc()
		return nil
	}
	if m.media != nil && s.MediaToken != "" {
		if err := m.media.DeleteFile(ctx, s.MediaToken); err != nil {
			log.Warn().Err(err).Msg("failed to delete story media")
		}
	}
	m.metrics.StoryExpirations.WithLabelValues(trigger, "deleted").Inc()
	log.Info().Msg("story expired")
	return nil
}

// Recover expires every story past its lifetime and arms timers for the rest.
// It runs once at startup so a restart never leaves expired stories behind.
func (m *Manager) Recover(ctx context.Context) (armed, expired int, err error) {
	stories, err := m.stories.ListStories(ctx)
	if err != nil {
		return 0, 0, err
	}

	now := m.clock.Now()
	for _, s := range stories {
		if m.IsVisible(s, now) {
			m.Arm(s)
			armed++
			continue
		}
		if err := m.expire(ctx, s, metrics.TriggerRecovery); err != nil {
			continue
		}
		expired++
	}
	m.log.Info().Int("armed", armed).Int("expired", expired).Msg("story recovery complete")
	return armed, expired, nil
}

// ArmedCount reports how many timers are pending.
func (m *Manager) ArmedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Shutdown cancels every pending timer. Later Arm calls are ignored.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.metrics.ArmedTimers.Set(0)
}
