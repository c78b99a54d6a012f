// Package coordinator держит по одной удаленной подписке на каждый
// логический запрос, зеркалирует ее снимки в локальный кеш и раздает их
// всем подключенным потребителям.
//
// Координатор - единственный писатель в кеш. При ошибке удаленного канала
// потребители получают результат из кеша с флагом Degraded, подписка при
// этом не разрывается и восстанавливается сама.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/pkg/latest"
)

// Source - удаленный живой канал инцидентов.
// Канал должен закрываться после отмены ctx.
type Source interface {
	Subscribe(ctx context.Context, q models.QueryDescriptor) <-chan models.FeedEvent
}

// Cache - локальное хранилище, в которое пишет только координатор
type Cache interface {
	Get(id string) (*models.Incident, error)
	Delete(id string) error
	Query(predicate func(*models.Incident) bool) ([]*models.Incident, error)
	Reconcile(predicate func(*models.Incident) bool, snapshot []*models.Incident) (int, error)
}

// Origin - откуда взят снимок
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginCache  Origin = "cache"
)

// Snapshot - полный текущий набор инцидентов для запроса.
// Инциденты общие для всех потребителей и не должны изменяться.
type Snapshot struct {
	Incidents []*models.Incident
	Degraded  bool
	Origin    Origin
	// Err заполнен, только если удаленный канал недоступен и кеш пуст
	Err error
	At  time.Time
}

// Options - параметры повторной подписки
type Options struct {
	RetryBase time.Duration
	RetryMax  time.Duration
}

type Coordinator struct {
	source Source
	cache  Cache
	logger *logrus.Logger
	opts   Options
	now    func() time.Time

	mu     sync.Mutex
	feeds  map[string]*feed
	closed bool
}

type feed struct {
	query     models.QueryDescriptor
	cancel    context.CancelFunc
	done      chan struct{}
	consumers map[*Subscription]struct{}
	last      *Snapshot
}

// withDefaults заполняет незаданные интервалы; RetryMax не меньше RetryBase
func (o Options) withDefaults() Options {
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.RetryMax < o.RetryBase {
		o.RetryMax = max(30*time.Second, o.RetryBase)
	}
	return o
}

func New(source Source, cache Cache, logger *logrus.Logger, opts Options) *Coordinator {
	return &Coordinator{
		source: source,
		cache:  cache,
		logger: logger,
		opts:   opts.withDefaults(),
		now:    time.Now,
		feeds:  make(map[string]*feed),
	}
}

// Subscription - один потребитель живого запроса
type Subscription struct {
	coord *Coordinator
	feed  *feed
	slot  *latest.Slot[Snapshot]
	once  sync.Once
}

// C отдает снимки; непрочитанный снимок заменяется более новым.
// Канал закрывается после Close.
func (s *Subscription) C() <-chan Snapshot {
	return s.slot.C()
}

// Close отключает потребителя. Если он был последним, удаленная подписка
// освобождается до возврата из Close.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.coord.detach(s)
	})
}

// Subscribe подключает потребителя к запросу. Запросы с одинаковым ключом
// разделяют одну удаленную подписку. Новый потребитель сразу получает
// последний известный снимок.
func (c *Coordinator) Subscribe(q models.QueryDescriptor) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := &Subscription{coord: c, slot: latest.NewSlot[Snapshot]()}
	if c.closed {
		sub.slot.Close()
		return sub
	}

	key := q.Key()
	f, ok := c.feeds[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		f = &feed{
			query:     q,
			cancel:    cancel,
			done:      make(chan struct{}),
			consumers: make(map[*Subscription]struct{}),
		}
		c.feeds[key] = f
		c.logger.WithField("query", key).Info("Starting remote feed")
		go c.run(ctx, f)
	}

	sub.feed = f
	f.consumers[sub] = struct{}{}
	if f.last != nil {
		sub.slot.Offer(*f.last)
	}
	return sub
}

func (c *Coordinator) detach(s *Subscription) {
	c.mu.Lock()
	f := s.feed
	s.slot.Close()
	if f == nil {
		c.mu.Unlock()
		return
	}
	delete(f.consumers, s)
	lastConsumer := len(f.consumers) == 0 && c.feeds[f.query.Key()] == f
	if lastConsumer {
		delete(c.feeds, f.query.Key())
		f.cancel()
	}
	c.mu.Unlock()

	if lastConsumer {
		<-f.done
		c.logger.WithField("query", f.query.Key()).Info("Remote feed released")
	}
}

// ActiveFeeds - число работающих удаленных подписок
func (c *Coordinator) ActiveFeeds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.feeds)
}

// Evict удаляет инцидент из кеша после подтвержденного удаленного удаления
func (c *Coordinator) Evict(id string) error {
	if err := c.cache.Delete(id); err != nil {
		return fmt.Errorf("coordinator: failed to evict %s: %w", id, err)
	}
	return nil
}

// CachedQuery читает результат запроса из кеша без обращения к удаленному хранилищу
func (c *Coordinator) CachedQuery(q models.QueryDescriptor) ([]*models.Incident, error) {
	return c.cache.Query(q.Matches)
}

// CachedGet читает инцидент из кеша
func (c *Coordinator) CachedGet(id string) (*models.Incident, error) {
	return c.cache.Get(id)
}

// Close останавливает все подписки и закрывает каналы потребителей
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	feeds := make([]*feed, 0, len(c.feeds))
	for key, f := range c.feeds {
		f.cancel()
		for sub := range f.consumers {
			sub.slot.Close()
		}
		feeds = append(feeds, f)
		delete(c.feeds, key)
	}
	c.mu.Unlock()

	for _, f := range feeds {
		<-f.done
	}
}

func (c *Coordinator) run(ctx context.Context, f *feed) {
	defer close(f.done)

	log := c.logger.WithFields(logrus.Fields{
		"component": "coordinator",
		"query":     f.query.Key(),
	})

	attempt := 0
	for {
		received := false
		for event := range c.source.Subscribe(ctx, f.query) {
			// После отмены канал дочитывается до закрытия, но в кеш не пишем
			if ctx.Err() != nil {
				continue
			}
			received = true
			if event.Err != nil {
				c.degrade(f, event.Err, log)
				continue
			}
			c.apply(f, event.Incidents, log)
		}
		if ctx.Err() != nil {
			return
		}
		if received {
			attempt = 0
		}

		c.degrade(f, fmt.Errorf("%w: feed closed", models.ErrRemoteUnavailable), log)
		delay := c.backoff(attempt)
		attempt++
		log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay.String()}).Warn("Remote feed closed, resubscribing")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Coordinator) apply(f *feed, incidents []*models.Incident, log *logrus.Entry) {
	if incidents == nil {
		incidents = []*models.Incident{}
	}
	removed, err := c.cache.Reconcile(f.query.Matches, incidents)
	if err != nil {
		log.WithError(err).Error("Failed to mirror snapshot into cache")
	} else if removed > 0 {
		log.WithField("removed", removed).Debug("Removed stale cached incidents")
	}

	c.broadcast(f, Snapshot{
		Incidents: incidents,
		Origin:    OriginRemote,
		At:        c.now(),
	})
}

func (c *Coordinator) degrade(f *feed, cause error, log *logrus.Entry) {
	log.WithError(cause).Warn("Remote feed unavailable, serving cached incidents")

	snap := Snapshot{Degraded: true, Origin: OriginCache, At: c.now()}
	cached, err := c.cache.Query(f.query.Matches)
	if err != nil {
		log.WithError(err).Error("Failed to read cached incidents")
		cached = []*models.Incident{}
		cause = errors.Join(cause, err)
	}
	snap.Incidents = cached
	if len(cached) == 0 {
		snap.Err = cause
	}
	c.broadcast(f, snap)
}

func (c *Coordinator) broadcast(f *feed, snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.last = &snap
	for sub := range f.consumers {
		sub.slot.Offer(snap)
	}
}

func (c *Coordinator) backoff(attempt int) time.Duration {
	delay := c.opts.RetryBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.opts.RetryMax {
			return c.opts.RetryMax
		}
	}
	return delay
}
