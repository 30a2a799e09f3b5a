package store

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pair-alert-bot/internal/types"
)

var (
	ErrBucketNotFound  = errors.New("bucket not found")
	ErrIndexOutOfRange = errors.New("rule index out of range")
)

// Document is the persisted form of the store: pairA -> pairB -> rules
type Document map[string]map[string][]types.Rule

// Snapshotter persists a complete Document, overwriting the previous one
type Snapshotter interface {
	Save(doc Document) error
	Load() (doc Document, found bool, err error)
}

// Store keeps pending rules in buckets keyed by pair.
// Bucket order is insertion order, and so is rule order inside a bucket.
// Every structural change is followed by a full snapshot write.
type Store struct {
	mu          sync.Mutex
	keys        []types.Pair
	buckets     map[types.Pair][]types.Rule
	snapshotter Snapshotter
}

func New(snapshotter Snapshotter) *Store {
	return &Store{
		buckets:     make(map[types.Pair][]types.Rule),
		snapshotter: snapshotter,
	}
}

// Add appends rule to the bucket of pair and persists.
// If the write fails the append is undone.
func (s *Store) Add(pair types.Pair, rule types.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.buckets[pair]
	s.appendLocked(pair, rule)

	if err := s.saveLocked(); err != nil {
		s.dropLastLocked(pair, existed)
		return err
	}

	log.Debugf("Rule added to %s: %+v", pair, rule)
	return nil
}

// RemoveAt deletes one rule and prunes the bucket when it becomes empty
func (s *Store) RemoveAt(pair types.Pair, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, ok := s.buckets[pair]
	if !ok {
		return errors.Wrap(ErrBucketNotFound, pair.String())
	}
	if index < 0 || index >= len(rules) {
		return errors.Wrapf(ErrIndexOutOfRange, "%s[%d]", pair, index)
	}

	rules = append(rules[:index:index], rules[index+1:]...)
	if len(rules) == 0 {
		s.deleteBucketLocked(pair)
	} else {
		s.buckets[pair] = rules
	}

	return s.saveLocked()
}

// Resolve fixes the direction of an unresolved rule and persists it
func (s *Store) Resolve(pair types.Pair, index int, direction types.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, ok := s.buckets[pair]
	if !ok {
		return errors.Wrap(ErrBucketNotFound, pair.String())
	}
	if index < 0 || index >= len(rules) {
		return errors.Wrapf(ErrIndexOutOfRange, "%s[%d]", pair, index)
	}
	if rules[index].Direction != types.DirectionUnresolved {
		return nil
	}

	rules[index].Direction = direction
	return s.saveLocked()
}

// Load reads the persisted document.
// Without merge the in-memory state is replaced; with merge every loaded
// rule is appended only when an equal rule is not already in its bucket.
func (s *Store) Load(merge bool) error {
	doc, found, err := s.snapshotter.Load()
	if err != nil {
		return errors.Wrap(err, "could not load rule snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !merge {
		s.keys = nil
		s.buckets = make(map[types.Pair][]types.Rule)
	}
	if !found {
		return nil
	}

	for _, pair := range documentPairs(doc) {
		for _, rule := range doc[pair.A][pair.B] {
			if merge && s.containsLocked(pair, rule) {
				continue
			}
			s.appendLocked(pair, rule)
		}
	}

	log.Infof("Rule store loaded (merge=%v): %d buckets", merge, len(s.keys))
	return nil
}

// Flush writes the current state
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Keys returns a copy of the bucket keys in insertion order
func (s *Store) Keys() []types.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]types.Pair, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Rules returns a copy of the bucket for pair
func (s *Store) Rules(pair types.Pair) []types.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules := make([]types.Rule, len(s.buckets[pair]))
	copy(rules, s.buckets[pair])
	return rules
}

// Len counts all pending rules
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, rules := range s.buckets {
		total += len(rules)
	}
	return total
}

func (s *Store) appendLocked(pair types.Pair, rule types.Rule) {
	if _, ok := s.buckets[pair]; !ok {
		s.keys = append(s.keys, pair)
	}
	s.buckets[pair] = append(s.buckets[pair], rule)
}

func (s *Store) dropLastLocked(pair types.Pair, existed bool) {
	if !existed {
		s.deleteBucketLocked(pair)
		return
	}
	rules := s.buckets[pair]
	s.buckets[pair] = rules[:len(rules)-1]
}

func (s *Store) deleteBucketLocked(pair types.Pair) {
	delete(s.buckets, pair)
	for i, key := range s.keys {
		if key == pair {
			s.keys = append(s.keys[:i:i], s.keys[i+1:]...)
			return
		}
	}
}

func (s *Store) containsLocked(pair types.Pair, rule types.Rule) bool {
	for _, existing := range s.buckets[pair] {
		if existing == rule {
			return true
		}
	}
	return false
}

func (s *Store) saveLocked() error {
	doc := make(Document, len(s.keys))
	for _, pair := range s.keys {
		if _, ok := doc[pair.A]; !ok {
			doc[pair.A] = make(map[string][]types.Rule)
		}
		doc[pair.A][pair.B] = append([]types.Rule(nil), s.buckets[pair]...)
	}

	if err := s.snapshotter.Save(doc); err != nil {
		return errors.Wrap(err, "could not persist rule snapshot")
	}
	return nil
}

// documentPairs lists the non-empty buckets of doc in a stable order
func documentPairs(doc Document) []types.Pair {
	var pairs []types.Pair
	for a, inner := range doc {
		for b, rules := range inner {
			if len(rules) == 0 {
				continue
			}
			pairs = append(pairs, types.Pair{A: a, B: b})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}
