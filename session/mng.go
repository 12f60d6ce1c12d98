package session

import (
	"context"
	"sync"
	"time"

	"github.com/bugVanisher/berrycam/common/errs"
)

type sessionManager struct {
	sessions sync.Map
}

type sessionInfo struct {
	session  *Session
	duration time.Duration
	cancel   context.CancelFunc
}

var SessionManager = &sessionManager{sessions: sync.Map{}}

// Launch starts s under name and blocks until ctx ends, duration elapses or
// Stop(name) is called. The session is closed on return.
func Launch(ctx context.Context, name string, s *Session, duration time.Duration) error {
	ctx, ctxCancel := context.WithTimeout(ctx, duration)
	defer ctxCancel()
	if _, loaded := SessionManager.sessions.LoadOrStore(name, sessionInfo{
		session:  s,
		duration: duration,
		cancel:   ctxCancel,
	}); loaded {
		return errs.Wrapf(errs.ErrDuplicateStream, "name: %s", name)
	}
	defer SessionManager.sessions.Delete(name)

	s.Start()
	<-ctx.Done()
	s.Close()
	return nil
}

// Get returns the running session registered as name.
func Get(name string) (*Session, bool) {
	info, ok := SessionManager.sessions.Load(name)
	if !ok {
		return nil, false
	}
	return info.(sessionInfo).session, true
}

func Stop(name string) error {
	info, ok := SessionManager.sessions.Load(name)
	if !ok {
		return errs.ErrStreamNotExist
	}
	info.(sessionInfo).cancel()
	return nil
}
