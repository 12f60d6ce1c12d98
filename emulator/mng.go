package emulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bugVanisher/berrycam/common/errs"
)

// Publisher serves a stream until ctx is done.
type Publisher interface {
	Publish(ctx context.Context) error
}

type publisherManager struct {
	streams sync.Map
}

type publishInfo struct {
	publisher Publisher
	duration  time.Duration
	cancel    context.CancelFunc
}

var PublisherManager = &publisherManager{streams: sync.Map{}}

// Launch runs publisher under name for at most duration. It blocks.
func Launch(name string, publisher Publisher, duration time.Duration) error {
	ctx, ctxCancel := context.WithTimeout(context.Background(), duration)
	defer ctxCancel()
	if _, loaded := PublisherManager.streams.LoadOrStore(name, publishInfo{
		publisher: publisher,
		duration:  duration,
		cancel:    ctxCancel,
	}); loaded {
		return errs.Wrapf(errs.ErrDuplicateStream, "name: %s", name)
	}
	defer PublisherManager.streams.Delete(name)

	return publisher.Publish(ctx)
}

func Stop(name string) error {
	info, ok := PublisherManager.streams.Load(name)
	if !ok {
		return errs.ErrStreamNotExist
	}
	info.(publishInfo).cancel()
	return nil
}

func StopAll() {
	PublisherManager.streams.Range(func(key, value interface{}) bool {
		value.(publishInfo).cancel()
		return true
	})
}

func GetAllStreamInfos() (infos []string) {
	PublisherManager.streams.Range(func(key, value interface{}) bool {
		infos = append(infos, fmt.Sprintf("%s-%s", key.(string), value.(publishInfo).duration))
		return true
	})
	return infos
}
