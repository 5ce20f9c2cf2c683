// Package container is the dependency-injection container. CreateDefault is
// the only place in the module where concrete services and gateways are
// constructed; everything else resolves ports through typed keys.
package container

import (
	"sort"
	"sync"

	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/ports"
)

var log = logger.Named("container")

// Key is a typed capability key. Get with a Key[T] returns a T, so callers
// never type-assert.
type Key[T any] struct {
	name string
}

// NewKey returns a key for capability name.
func NewKey[T any](name string) Key[T] { return Key[T]{name: name} }

// Name returns the capability name.
func (k Key[T]) Name() string { return k.name }

// Keys for every port.
var (
	EmailKey          = NewKey[ports.Email](ports.CapEmailSend)
	EmailProviderKey  = NewKey[ports.EmailProvider](ports.CapEmailProvider)
	ClassificationKey = NewKey[ports.Classification](ports.CapReplyClassify)
	FollowUpKey       = NewKey[ports.FollowUp](ports.CapFollowUp)
	InboxKey          = NewKey[ports.Inbox](ports.CapInboxFetch)
	DecisionKey       = NewKey[ports.Decision](ports.CapDecision)
	NurtureKey        = NewKey[ports.Nurture](ports.CapNurture)
	AlertKey          = NewKey[ports.Alert](ports.CapAlertSend)
	LockKey           = NewKey[ports.Lock](ports.CapWorkerLock)
	MeteringKey       = NewKey[ports.Metering](ports.CapMeteringRecord)
	EventsKey         = NewKey[ports.Events](ports.CapEventsPublish)
)

// Container holds port implementations by capability name.
type Container struct {
	mu       sync.RWMutex
	services map[string]interface{}
}

// New returns an empty container.
func New() *Container {
	return &Container{services: map[string]interface{}{}}
}

// Register stores impl under key, replacing any previous value.
func Register[T any](c *Container, key Key[T], impl T) {
	c.mu.Lock()
	c.services[key.name] = impl
	c.mu.Unlock()
}

// Get resolves key. A missing service yields the zero value, false and a
// warning; callers must tolerate optional modules being absent.
func Get[T any](c *Container, key Key[T]) (T, bool) {
	c.mu.RLock()
	v, ok := c.services[key.name]
	c.mu.RUnlock()

	var zero T
	if !ok {
		log.Warn("service not registered", "capability", key.name)
		return zero, false
	}
	impl, ok := v.(T)
	if !ok {
		log.Warn("service has unexpected type", "capability", key.name)
		return zero, false
	}
	return impl, true
}

// Has reports whether key is registered, without logging.
func Has[T any](c *Container, key Key[T]) bool {
	c.mu.RLock()
	_, ok := c.services[key.name]
	c.mu.RUnlock()
	return ok
}

// Names lists registered capability names.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
