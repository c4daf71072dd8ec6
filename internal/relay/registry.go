package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
	"github.com/pscheid92/missioncontrol/internal/domain"
)

const (
	commandTimeout  = 5 * time.Second
	stopTimeout     = 10 * time.Second
	commandCapacity = 256
)

var (
	ErrGroupFull       = errors.New("group is full")
	ErrRegistryStopped = errors.New("registry stopped")
)

type members map[string]Subscriber

type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type joinCmd struct {
	baseRegistryCmd
	group        domain.GroupKey
	subscriber   Subscriber
	errorChannel chan error
}

type leaveCmd struct {
	baseRegistryCmd
	group      domain.GroupKey
	subscriber Subscriber
}

type membersCmd struct {
	baseRegistryCmd
	group        domain.GroupKey
	replyChannel chan []Subscriber
}

type countCmd struct {
	baseRegistryCmd
	group        domain.GroupKey
	all          bool
	replyChannel chan int
}

type stopCmd struct {
	baseRegistryCmd
}

// Registry tracks which subscribers belong to which group. All state is owned by a
// single goroutine; public methods send commands and wait for the reply.
type Registry struct {
	cmdCh       chan registryCmd
	clock       clockwork.Clock
	groups      map[domain.GroupKey]members
	maxPerGroup int
	metrics     *metrics.RelayMetrics
	done        chan struct{}
	stopOnce    sync.Once
}

// NewRegistry starts the registry goroutine. maxPerGroup <= 0 means unlimited; m may be nil.
func NewRegistry(clock clockwork.Clock, maxPerGroup int, m *metrics.RelayMetrics) *Registry {
	r := &Registry{
		cmdCh:       make(chan registryCmd, commandCapacity),
		clock:       clock,
		groups:      make(map[domain.GroupKey]members),
		maxPerGroup: maxPerGroup,
		metrics:     m,
		done:        make(chan struct{}),
	}
	go r.run()
	return r
}

// Join adds sub to group, creating the group on first use. Joining twice is a no-op.
func (r *Registry) Join(group domain.GroupKey, sub Subscriber) error {
	errCh := make(chan error, 1)
	if !r.send(joinCmd{group: group, subscriber: sub, errorChannel: errCh}) {
		return ErrRegistryStopped
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-r.done:
		return ErrRegistryStopped
	case <-timer.Chan():
		return fmt.Errorf("join command timed out after %v", commandTimeout)
	}
}

// Leave removes sub from group. Unknown groups or subscribers are ignored.
func (r *Registry) Leave(group domain.GroupKey, sub Subscriber) {
	r.send(leaveCmd{group: group, subscriber: sub})
}

// Members returns a snapshot of the subscribers in group. Later membership changes do
// not affect the returned slice.
func (r *Registry) Members(group domain.GroupKey) []Subscriber {
	replyCh := make(chan []Subscriber, 1)
	if !r.send(membersCmd{group: group, replyChannel: replyCh}) {
		return nil
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case subs := <-replyCh:
		return subs
	case <-r.done:
		return nil
	case <-timer.Chan():
		slog.Warn("Members timed out", "group", group, "timeout", commandTimeout)
		return nil
	}
}

// SubscriberCount returns the number of subscribers in group, or -1 on timeout.
func (r *Registry) SubscriberCount(group domain.GroupKey) int {
	return r.count(countCmd{group: group})
}

// GroupCount returns the number of non-empty groups, or -1 on timeout.
func (r *Registry) GroupCount() int {
	return r.count(countCmd{all: true})
}

func (r *Registry) count(cmd countCmd) int {
	cmd.replyChannel = make(chan int, 1)
	if !r.send(cmd) {
		return 0
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-cmd.replyChannel:
		return n
	case <-r.done:
		return 0
	case <-timer.Chan():
		return -1
	}
}

// Stop closes every subscriber with CloseGoingAway and stops the registry goroutine.
// Subsequent calls return immediately.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		if !r.send(stopCmd{}) {
			return
		}

		timeout := r.clock.NewTimer(stopTimeout)
		defer timeout.Stop()

		select {
		case <-r.done:
			slog.Info("Registry stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Registry stop timeout exceeded", "timeout", stopTimeout)
		}
	})
}

func (r *Registry) send(cmd registryCmd) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.cmdCh <- cmd:
		return true
	case <-r.done:
		return false
	}
}

func (r *Registry) run() {
	defer close(r.done)
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Registry panic recovered", "panic", rec)
			r.closeAll(CloseInternalError, "registry failure")
		}
	}()

	depthTicker := r.clock.NewTicker(time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			if r.metrics != nil {
				r.metrics.RegistryCmdDepth.Set(float64(len(r.cmdCh)))
			}

		case cmd := <-r.cmdCh:
			switch c := cmd.(type) {
			case joinCmd:
				c.errorChannel <- r.handleJoin(c)
			case leaveCmd:
				r.handleLeave(c)
			case membersCmd:
				c.replyChannel <- r.snapshot(c.group)
			case countCmd:
				if c.all {
					c.replyChannel <- len(r.groups)
				} else {
					c.replyChannel <- len(r.groups[c.group])
				}
			case stopCmd:
				r.closeAll(CloseGoingAway, "server shutting down")
				return
			default:
				slog.Warn("Registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (r *Registry) handleJoin(c joinCmd) error {
	group, exists := r.groups[c.group]
	if exists {
		if _, already := group[c.subscriber.ID()]; already {
			return nil
		}
	}

	if r.maxPerGroup > 0 && len(group) >= r.maxPerGroup {
		if r.metrics != nil {
			r.metrics.JoinsRejected.WithLabelValues("group_full").Inc()
		}
		slog.Warn("Rejecting join: group full", "group", c.group, "max_subscribers", r.maxPerGroup)
		return fmt.Errorf("%w: %s has %d subscribers", ErrGroupFull, c.group, r.maxPerGroup)
	}

	if !exists {
		group = make(members)
		r.groups[c.group] = group
	}
	group[c.subscriber.ID()] = c.subscriber
	r.updateGauges()

	slog.Debug("Subscriber joined", "group", c.group, "subscriber_id", c.subscriber.ID(), "total", len(group))
	return nil
}

func (r *Registry) handleLeave(c leaveCmd) {
	group, exists := r.groups[c.group]
	if !exists {
		return
	}
	if _, ok := group[c.subscriber.ID()]; !ok {
		return
	}

	delete(group, c.subscriber.ID())
	if len(group) == 0 {
		delete(r.groups, c.group)
	}
	r.updateGauges()

	slog.Debug("Subscriber left", "group", c.group, "subscriber_id", c.subscriber.ID(), "remaining", len(group))
}

func (r *Registry) snapshot(key domain.GroupKey) []Subscriber {
	group := r.groups[key]
	subs := make([]Subscriber, 0, len(group))
	for _, sub := range group {
		subs = append(subs, sub)
	}
	return subs
}

func (r *Registry) closeAll(code int, reason string) {
	for key, group := range r.groups {
		for _, sub := range group {
			sub.Close(code, reason)
		}
		delete(r.groups, key)
	}
	r.updateGauges()
}

func (r *Registry) updateGauges() {
	if r.metrics == nil {
		return
	}
	total := 0
	for _, group := range r.groups {
		total += len(group)
	}
	r.metrics.Groups.Set(float64(len(r.groups)))
	r.metrics.Subscribers.Set(float64(total))
}
