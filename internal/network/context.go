package network

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SimulationContext owns the state shared by every element of one network:
// id generators, observers, the random stream and the logger.
type SimulationContext struct {
	mu        sync.Mutex
	counters  map[string]int
	observers map[int]Observer
	nextObs   int

	seed   int64
	rand   *rand.Rand
	logger *slog.Logger
}

type ContextOption func(*SimulationContext)

func WithSeed(seed int64) ContextOption {
	return func(c *SimulationContext) {
		c.seed = seed
	}
}

func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *SimulationContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewSimulationContext(opts ...ContextOption) *SimulationContext {
	c := &SimulationContext{
		counters:  make(map[string]int),
		observers: make(map[int]Observer),
		seed:      time.Now().UnixNano(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rand = rand.New(&lockedSource{src: rand.NewSource(c.seed).(rand.Source64)})
	return c
}

// NextID returns the next id for kind, e.g. "Neuron_3".
func (c *SimulationContext) NextID(kind string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[kind]++
	return fmt.Sprintf("%s_%d", kind, c.counters[kind])
}

// Subscribe registers an observer and returns a function that removes it.
func (c *SimulationContext) Subscribe(o Observer) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = o
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *SimulationContext) emit(ev Event) {
	c.mu.Lock()
	if len(c.observers) == 0 {
		c.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, c.observers[id])
	}
	c.mu.Unlock()

	for _, o := range observers {
		o(ev)
	}
}

func (c *SimulationContext) Seed() int64 { return c.seed }

// Rand is safe for concurrent use.
func (c *SimulationContext) Rand() *rand.Rand { return c.rand }

func (c *SimulationContext) Logger() *slog.Logger { return c.logger }

type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	v := s.src.Int63()
	s.mu.Unlock()
	return v
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	v := s.src.Uint64()
	s.mu.Unlock()
	return v
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	s.src.Seed(seed)
	s.mu.Unlock()
}

// detachedRand serves elements not yet adopted by a network.
var detachedRand = rand.New(&lockedSource{src: rand.NewSource(1).(rand.Source64)})

// reserveID advances the counter for an id of the form "Kind_n" so later
// NextID calls never reuse it.
func (c *SimulationContext) reserveID(id string) {
	i := strings.LastIndexByte(id, '_')
	if i <= 0 {
		return
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return
	}
	c.mu.Lock()
	if c.counters[id[:i]] < n {
		c.counters[id[:i]] = n
	}
	c.mu.Unlock()
}
