package query

import (
	"sync"
	"time"

	"github.com/shenikar/waste_incident_sync/internal/coordinator"
	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/pkg/latest"
)

// Feed - поток снимков одного живого запроса координатора
type Feed interface {
	C() <-chan coordinator.Snapshot
	Close()
}

// Result - пересчитанное представление
type Result struct {
	Incidents []*models.Incident
	Filter    Filter
	Degraded  bool
	Err       error
	// Version растет на единицу при каждом пересчете
	Version uint64
	// Total - размер исходного набора до фильтрации
	Total int
	At    time.Time
}

// View - живое представление поверх подписки координатора. Любое
// изменение фильтра или новый снимок дают ровно один пересчет, который
// публикуется всем подписчикам представления.
type View struct {
	feed Feed
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	filter  Filter
	base    *coordinator.Snapshot
	version uint64
	current *Result
	subs    map[*latest.Slot[Result]]struct{}
	closed  bool
}

// NewView привязывает представление к подписке и забирает владение ею
func NewView(feed Feed, f Filter) *View {
	v := &View{
		feed:   feed,
		done:   make(chan struct{}),
		filter: f.Normalize(),
		subs:   make(map[*latest.Slot[Result]]struct{}),
	}
	go v.run()
	return v
}

func (v *View) run() {
	defer close(v.done)
	for snap := range v.feed.C() {
		v.mu.Lock()
		v.base = &snap
		v.recompute()
		v.mu.Unlock()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	for slot := range v.subs {
		slot.Close()
	}
}

// Subscribe возвращает канал результатов (только последний) и функцию отписки.
// Если результат уже есть, он приходит сразу, даже после завершения потока.
func (v *View) Subscribe() (<-chan Result, func()) {
	slot := latest.NewSlot[Result]()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		// завершенное представление отдает последний результат и закрывается
		if v.current != nil {
			slot.Offer(*v.current)
		}
		slot.Close()
		return slot.C(), func() {}
	}
	v.subs[slot] = struct{}{}
	if v.current != nil {
		slot.Offer(*v.current)
	}

	return slot.C(), func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, slot)
		slot.Close()
	}
}

// Current возвращает последний результат; false, если снимков еще не было
func (v *View) Current() (Result, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return Result{}, false
	}
	return *v.current, true
}

func (v *View) Filter() Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

func (v *View) SetText(text string) {
	v.update(func(f *Filter) { f.Text = text })
}

func (v *View) SetBucket(b StatusBucket) {
	v.update(func(f *Filter) { f.Bucket = b })
}

// SetRange задает интервал дат; nil снимает ограничение
func (v *View) SetRange(r *DateRange) {
	v.update(func(f *Filter) { f.Range = r })
}

func (v *View) SetSort(m SortMode) {
	v.update(func(f *Filter) { f.Sort = m })
}

func (v *View) SetCategory(category string) {
	v.update(func(f *Filter) { f.Category = category })
}

func (v *View) SetNear(near *GeoRadius) {
	v.update(func(f *Filter) { f.Near = near })
}

// SetFilter заменяет все критерии сразу; пересчет один
func (v *View) SetFilter(f Filter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	v.update(func(cur *Filter) { *cur = f })
	return nil
}

// Close освобождает подписку координатора и закрывает каналы подписчиков
func (v *View) Close() {
	v.once.Do(func() {
		v.feed.Close()
		<-v.done
	})
}

func (v *View) update(mutate func(*Filter)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	mutate(&v.filter)
	v.filter = v.filter.Normalize()
	if v.base != nil {
		v.recompute()
	}
}

// recompute вызывается под v.mu
func (v *View) recompute() {
	v.version++
	res := Result{
		Incidents: Apply(v.base.Incidents, v.filter),
		Filter:    v.filter,
		Degraded:  v.base.Degraded,
		Err:       v.base.Err,
		Version:   v.version,
		Total:     len(v.base.Incidents),
		At:        v.base.At,
	}
	v.current = &res
	for slot := range v.subs {
		slot.Offer(res)
	}
}
