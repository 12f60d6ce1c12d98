package queue

import (
	"fmt"
	"sync"

	"github.com/bugVanisher/berrycam/media/av"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultPktCount is the most frames a queue holds before dropping the oldest.
	DefaultPktCount = 30
)

//        time
// ----------------->
//
// F-F-F-F-F-F-F-F-F-F
// |                 |
// 0        5        10
// head             tail
// oldest          latest
//

// Stat ...
type Stat struct {
	PktCount     uint32 `json:"pkt_count"`
	LossPktCount uint32 `json:"loss_pkt_count"`
	PktSize      int    `json:"pkt_size"`
	HeadPos      int    `json:"head_pos"`
	TailPos      int    `json:"tail_pos"`
	Closed       bool   `json:"closed"`
}

// Queue is a bounded FIFO of compressed frames shared by one producer and one consumer.
// Pushing into a full queue evicts and releases the oldest frame.
type Queue struct {
	buf  *Buf
	lock sync.Mutex

	closed       bool
	maxPktCount  int
	lossPktCount uint32

	sid string
}

// NewQueue new a queue
func NewQueue() *Queue {
	return &Queue{
		buf:         NewBuf(),
		maxPktCount: DefaultPktCount,
	}
}

// SetMaxPktCount set MaxPktCount
func (q *Queue) SetMaxPktCount(n int) {
	if n < 1 {
		n = 1
	}
	q.lock.Lock()
	q.maxPktCount = n
	for q.buf.Count > q.maxPktCount {
		q.buf.Pop().Release()
		q.lossPktCount++
	}
	q.lock.Unlock()
}

// SetSID tags log lines with the owning session id.
func (q *Queue) SetSID(id string) {
	q.lock.Lock()
	q.sid = id
	q.lock.Unlock()
}

// Push appends frame, dropping the oldest frames beyond the bound.
// After Close the frame is released immediately.
func (q *Queue) Push(frame *av.Frame) {
	if frame == nil {
		return
	}
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		frame.Release()
		return
	}
	q.buf.Push(frame)
	dropped := 0
	for q.buf.Count > q.maxPktCount {
		q.buf.Pop().Release()
		q.lossPktCount++
		dropped++
	}
	loss, sid := q.lossPktCount, q.sid
	q.lock.Unlock()

	if dropped > 0 && loss%100 == 1 {
		log.Debug().Str("sid", sid).Uint32("loss", loss).Msg("[Queue] drop oldest frame")
	}
}

// Pop removes the oldest frame without blocking. Ownership moves to the caller.
func (q *Queue) Pop() (*av.Frame, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.buf.Count == 0 {
		return nil, false
	}
	return q.buf.Pop(), true
}

// Clear releases every buffered frame.
func (q *Queue) Clear() {
	q.lock.Lock()
	for q.buf.Count > 0 {
		q.buf.Pop().Release()
	}
	q.lock.Unlock()
}

// Len is the number of buffered frames.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.buf.Count
}

// Close clears the queue; later pushes are released on arrival.
func (q *Queue) Close() (err error) {
	if q == nil {
		return
	}
	q.lock.Lock()
	q.closed = true
	for q.buf.Count > 0 {
		q.buf.Pop().Release()
	}
	q.lock.Unlock()
	return
}

func (q *Queue) Stat() *Stat {
	q.lock.Lock()
	defer q.lock.Unlock()
	return &Stat{
		PktCount:     uint32(q.buf.Count),
		LossPktCount: q.lossPktCount,
		PktSize:      q.buf.Size,
		HeadPos:      int(q.buf.Head),
		TailPos:      int(q.buf.Tail),
		Closed:       q.closed,
	}
}

func (q *Queue) Format() string {
	q.lock.Lock()
	defer q.lock.Unlock()
	return fmt.Sprintf("queue maxPktCount:[%d], pktNum[%d], lossPktCount[%d]", q.maxPktCount, q.buf.Count, q.lossPktCount)
}
