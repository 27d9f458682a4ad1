package remote

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const channelPrefix = "chronicle_"

// notifier fans out change notifications per collection and user.
type notifier interface {
	publish(ctx context.Context, db sqlx.ExecerContext, c Collection, userID string) error
	subscribe(c Collection, userID string, fn func()) func()
	close() error
}

type subKey struct {
	collection Collection
	userID     string
}

// hub is an in-process notifier. Callbacks run on the publishing goroutine
// after the write has committed.
type hub struct {
	mu     sync.Mutex
	subs   map[subKey]map[int]func()
	nextID int
}

func newHub() *hub {
	return &hub{subs: make(map[subKey]map[int]func())}
}

func (h *hub) publish(_ context.Context, _ sqlx.ExecerContext, c Collection, userID string) error {
	h.dispatch(subKey{collection: c, userID: userID})
	return nil
}

func (h *hub) subscribe(c Collection, userID string, fn func()) func() {
	key := subKey{collection: c, userID: userID}

	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]func())
	}
	h.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
		})
	}
}

func (h *hub) dispatch(key subKey) {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.subs[key]))
	for _, fn := range h.subs[key] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// dispatchAll notifies every subscriber, used when notifications may have
// been lost.
func (h *hub) dispatchAll() {
	h.mu.Lock()
	var fns []func()
	for _, set := range h.subs {
		for _, fn := range set {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (h *hub) close() error {
	return nil
}

// pgNotifier publishes with pg_notify and receives through a pq.Listener,
// so writes made by other clients of the same database are seen too. The
// notification payload is the user id.
type pgNotifier struct {
	*hub
	listener *pq.Listener
	done     chan struct{}
	wg       sync.WaitGroup
}

const listenerPingInterval = 90 * time.Second

func newPGNotifier(dsn string) *pgNotifier {
	n := &pgNotifier{
		hub:  newHub(),
		done: make(chan struct{}),
	}
	n.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("remote: change listener event %d: %v", ev, err)
		}
	})

	for _, c := range Collections() {
		if err := n.listener.Listen(channelPrefix + string(c)); err != nil {
			log.Printf("remote: listening on %s: %v", c, err)
		}
	}

	n.wg.Add(1)
	go n.run()
	return n
}

func (n *pgNotifier) publish(ctx context.Context, db sqlx.ExecerContext, c Collection, userID string) error {
	_, err := db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channelPrefix+string(c), userID)
	if err != nil {
		return fmt.Errorf("notifying %s: %w", c, err)
	}
	return nil
}

func (n *pgNotifier) run() {
	defer n.wg.Done()

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.done:
			return
		case note := <-n.listener.Notify:
			// A nil notification follows a reconnect; anything may have changed.
			if note == nil {
				n.dispatchAll()
				continue
			}
			c := Collection(strings.TrimPrefix(note.Channel, channelPrefix))
			n.dispatch(subKey{collection: c, userID: note.Extra})
		case <-ticker.C:
			go func() {
				if err := n.listener.Ping(); err != nil {
					log.Printf("remote: pinging change listener: %v", err)
				}
			}()
		}
	}
}

func (n *pgNotifier) close() error {
	close(n.done)
	n.wg.Wait()
	return n.listener.Close()
}
