package journal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/serialization"
)

// Kind classifies a journal record
type Kind string

const (
	KindSet     Kind = "set"
	KindAdded   Kind = "added"
	KindRemoved Kind = "removed"
)

// Record is one journal entry
type Record struct {
	Sequence  uint64    `json:"seq"`
	Time      time.Time `json:"time"`
	Kind      Kind      `json:"kind"`
	Element   string    `json:"element"`
	ElementID string    `json:"element_id"`
	Type      string    `json:"type"`
	Feature   string    `json:"feature,omitempty"`
	Old       any       `json:"old,omitempty"`
	New       any       `json:"new,omitempty"`
}

// Sink receives journal records in order
type Sink interface {
	Write(ctx context.Context, r Record) error
}

// Journal follows the elements of a repository. Each element gets a Tracker
// and every feature change is written to the sink as it happens.
type Journal struct {
	ctx    context.Context
	repo   *model.Repository
	sink   Sink
	logger *zap.Logger
	now    func() time.Time

	trackers map[*model.Element]*Tracker
	subs     map[*model.Element]*model.Subscription
	repoSubs []*model.Subscription
	seq      uint64
	failures int
}

// Option configures a Journal
type Option func(*Journal)

// WithLogger sets the logger used to report sink failures
func WithLogger(l *zap.Logger) Option {
	return func(j *Journal) {
		if l != nil {
			j.logger = l
		}
	}
}

// WithClock overrides the record timestamp source
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		j.now = now
	}
}

// Attach starts journaling repo. Elements already in the repository are
// tracked from their current state; later additions are recorded as such.
func Attach(ctx context.Context, repo *model.Repository, sink Sink, opts ...Option) *Journal {
	j := &Journal{
		ctx:      ctx,
		repo:     repo,
		sink:     sink,
		logger:   zap.NewNop(),
		now:      time.Now,
		trackers: make(map[*model.Element]*Tracker),
		subs:     make(map[*model.Element]*model.Subscription),
	}
	for _, opt := range opts {
		opt(j)
	}

	for _, el := range repo.Elements() {
		j.track(el)
	}
	j.repoSubs = []*model.Subscription{
		repo.Added().Subscribe(func(el *model.Element, _ model.LifecycleEvent) {
			j.track(el)
			j.write(Record{Kind: KindAdded}, el)
		}),
		repo.Removed().Subscribe(func(el *model.Element, _ model.LifecycleEvent) {
			j.untrack(el)
			j.write(Record{Kind: KindRemoved}, el)
		}),
	}
	return j
}

// Tracker returns the tracker of an element
func (j *Journal) Tracker(el model.ModelElement) (*Tracker, bool) {
	t, ok := j.trackers[el.ModelElement()]
	return t, ok
}

// Changed returns the elements with changes since the last Reset, in
// repository order
func (j *Journal) Changed() []*model.Element {
	var out []*model.Element
	for _, el := range j.repo.Elements() {
		if t, ok := j.trackers[el]; ok && t.HasChanges() {
			out = append(out, el)
		}
	}
	return out
}

// Reset makes the current state of every element the new baseline
func (j *Journal) Reset() {
	for _, t := range j.trackers {
		t.Reset()
	}
}

// Sequence returns the sequence number of the last record
func (j *Journal) Sequence() uint64 {
	return j.seq
}

// Failures returns the number of records the sink rejected
func (j *Journal) Failures() int {
	return j.failures
}

// Detach stops journaling
func (j *Journal) Detach() {
	for _, sub := range j.repoSubs {
		sub.Unsubscribe()
	}
	j.repoSubs = nil
	for el := range j.trackers {
		j.untrack(el)
	}
}

func (j *Journal) track(el *model.Element) {
	if _, ok := j.trackers[el]; ok {
		return
	}
	t := NewTracker(el)
	j.trackers[el] = t
	j.subs[el] = el.PropertyChanged().Subscribe(func(sender *model.Element, ev model.ChangeEvent) {
		value := persisted(ev.New)
		t.Set(ev.Feature.Name, value)
		j.write(Record{
			Kind:    KindSet,
			Feature: ev.Feature.Name,
			Old:     persisted(ev.Old),
			New:     value,
		}, sender)
	})
}

func (j *Journal) untrack(el *model.Element) {
	j.subs[el].Unsubscribe()
	delete(j.subs, el)
	delete(j.trackers, el)
}

func (j *Journal) write(r Record, el *model.Element) {
	j.seq++
	r.Sequence = j.seq
	r.Time = j.now()
	r.Element = serialization.RefOf(el)
	r.ElementID = el.ID().String()
	r.Type = el.Type().URI

	if err := j.sink.Write(j.ctx, r); err != nil {
		j.failures++
		j.logger.Warn("journal sink rejected record",
			zap.Uint64("seq", r.Sequence),
			zap.String("element", r.Element),
			zap.Error(err))
	}
}
