package io

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

var (
	ErrSensorExists     = errors.New("sensor already registered")
	ErrSensorNotFound   = errors.New("sensor not found")
	ErrActuatorExists   = errors.New("actuator already registered")
	ErrActuatorNotFound = errors.New("actuator not found")
	ErrVersionMismatch  = errors.New("registry version mismatch")
	ErrIncompatible     = errors.New("component incompatible with group")
)

// CompatibilityFn vets the width of the neuron group a component binds to.
type CompatibilityFn func(width int) error

// Factories receive the width of the group the component will serve.
type SensorFactory func(width int) Sensor

type ActuatorFactory func(width int) Actuator

type SensorSpec struct {
	Name          string
	Factory       SensorFactory
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type ActuatorSpec struct {
	Name          string
	Factory       ActuatorFactory
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type registered[F any] struct {
	factory       F
	schemaVersion int
	codecVersion  int
	compatible    CompatibilityFn
}

type registry[F any] struct {
	kind     string
	exists   error
	notFound error

	mu sync.RWMutex
	m  map[string]registered[F]
}

func newRegistry[F any](kind string, exists, notFound error) *registry[F] {
	return &registry[F]{kind: kind, exists: exists, notFound: notFound, m: make(map[string]registered[F])}
}

func (r *registry[F]) register(name string, entry registered[F]) error {
	if name == "" {
		return fmt.Errorf("%s name is required", r.kind)
	}
	if entry.schemaVersion != SupportedSchemaVersion || entry.codecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, entry.schemaVersion, entry.codecVersion)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.m[name]; exists {
		return fmt.Errorf("%w: %s", r.exists, name)
	}
	r.m[name] = entry
	return nil
}

func (r *registry[F]) lookup(name string) (registered[F], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.m[name]
	if !ok {
		return registered[F]{}, fmt.Errorf("%w: %s", r.notFound, name)
	}
	return entry, nil
}

func (r *registry[F]) check(name string, entry registered[F], width int) error {
	if width <= 0 {
		return fmt.Errorf("%w: %s=%s: width %d", ErrIncompatible, r.kind, name, width)
	}
	if entry.compatible != nil {
		if err := entry.compatible(width); err != nil {
			return fmt.Errorf("%w: %s=%s: %v", ErrIncompatible, r.kind, name, err)
		}
	}
	return nil
}

func (r *registry[F]) list(width int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.m))
	for name, entry := range r.m {
		if width > 0 && r.check(name, entry, width) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *registry[F]) reset() {
	r.mu.Lock()
	r.m = make(map[string]registered[F])
	r.mu.Unlock()
}

var (
	sensorRegistry   = newRegistry[SensorFactory]("sensor", ErrSensorExists, ErrSensorNotFound)
	actuatorRegistry = newRegistry[ActuatorFactory]("actuator", ErrActuatorExists, ErrActuatorNotFound)
)

func RegisterSensor(name string, factory SensorFactory) error {
	return RegisterSensorWithSpec(SensorSpec{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

func RegisterSensorWithSpec(spec SensorSpec) error {
	if spec.Factory == nil {
		return errors.New("sensor factory is required")
	}
	return sensorRegistry.register(spec.Name, registered[SensorFactory]{
		factory:       spec.Factory,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	})
}

// ResolveSensor builds the named sensor for a group of the given width.
func ResolveSensor(name string, width int) (Sensor, error) {
	entry, err := sensorRegistry.lookup(strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if err := sensorRegistry.check(name, entry, width); err != nil {
		return nil, err
	}
	return entry.factory(width), nil
}

// ListSensors lists every sensor, or those compatible with width when it is
// positive.
func ListSensors(width int) []string {
	return sensorRegistry.list(width)
}

func RegisterActuator(name string, factory ActuatorFactory) error {
	return RegisterActuatorWithSpec(ActuatorSpec{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

func RegisterActuatorWithSpec(spec ActuatorSpec) error {
	if spec.Factory == nil {
		return errors.New("actuator factory is required")
	}
	return actuatorRegistry.register(spec.Name, registered[ActuatorFactory]{
		factory:       spec.Factory,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	})
}

// ResolveActuator accepts canonical names and their aliases.
func ResolveActuator(name string, width int) (Actuator, error) {
	canonical := CanonicalActuatorName(name)
	entry, err := actuatorRegistry.lookup(canonical)
	if err != nil {
		return nil, err
	}
	if err := actuatorRegistry.check(canonical, entry, width); err != nil {
		return nil, err
	}
	return entry.factory(width), nil
}

func ListActuators(width int) []string {
	return actuatorRegistry.list(width)
}

func resetRegistriesForTests() {
	sensorRegistry.reset()
	actuatorRegistry.reset()
	initializeDefaultComponents()
}
