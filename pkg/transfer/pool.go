package transfer

import (
	"context"
	"sync"

	"github.com/sdejongh/skiff/pkg/models"
	"github.com/sdejongh/skiff/pkg/protocol"
)

// sessionPool caches connected sessions per site. Each site gets at most
// MaxConnections open sessions; a borrowed session belongs to one worker
// at a time, so adapters never see concurrent calls.
type sessionPool struct {
	opts   protocol.Options
	create func(*models.Site, protocol.Options) (protocol.Session, error)

	mu   sync.Mutex
	sems map[string]chan struct{}
	idle map[string][]protocol.Session
}

func newSessionPool(opts protocol.Options, create func(*models.Site, protocol.Options) (protocol.Session, error)) *sessionPool {
	if create == nil {
		create = protocol.Create
	}
	return &sessionPool{
		opts:   opts,
		create: create,
		sems:   make(map[string]chan struct{}),
		idle:   make(map[string][]protocol.Session),
	}
}

func (p *sessionPool) sem(site *models.Site) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sems[site.ID]
	if !ok {
		n := site.MaxConnections
		if n < 1 {
			n = 1
		}
		s = make(chan struct{}, n)
		p.sems[site.ID] = s
	}
	return s
}

// acquire returns a connected session for the site, reusing an idle one
// when it still answers. Blocks while the site is at its connection cap.
func (p *sessionPool) acquire(ctx context.Context, site *models.Site) (protocol.Session, error) {
	sem := p.sem(site)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	list := p.idle[site.ID]
	for len(list) > 0 {
		sess := list[len(list)-1]
		list = list[:len(list)-1]
		p.idle[site.ID] = list
		if sess.Connected() {
			p.mu.Unlock()
			return sess, nil
		}
		// Stale, replace with a fresh connection
		sess.Disconnect()
	}
	p.mu.Unlock()

	sess, err := p.create(site, p.opts)
	if err != nil {
		<-sem
		return nil, err
	}
	if err := sess.Connect(ctx); err != nil {
		<-sem
		return nil, err
	}
	return sess, nil
}

// release returns a session to the idle list, dropping it when the
// connection died along the way
func (p *sessionPool) release(site *models.Site, sess protocol.Session) {
	if sess != nil {
		if sess.Connected() {
			p.mu.Lock()
			p.idle[site.ID] = append(p.idle[site.ID], sess)
			p.mu.Unlock()
		} else {
			sess.Disconnect()
		}
	}
	<-p.sem(site)
}

// closeAll disconnects every idle session, ignoring errors
func (p *sessionPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, list := range p.idle {
		for _, sess := range list {
			sess.Disconnect()
		}
		delete(p.idle, id)
	}
}
