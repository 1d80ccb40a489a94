package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync tracks the offset between local and exchange server time so signed
// requests carry a timestamp inside the venue's recvWindow.
type TimeSync struct {
	getServerTime func(ctx context.Context) (int64, error)
	now           func() time.Time
	offset        int64 // milliseconds offset (server - local)
	lastSync      time.Time
	mu            sync.RWMutex
}

// NewTimeSync creates a new time synchronization manager.
func NewTimeSync(getServerTime func(ctx context.Context) (int64, error)) *TimeSync {
	return &TimeSync{
		getServerTime: getServerTime,
		now:           time.Now,
	}
}

// Sync synchronizes with server time.
func (ts *TimeSync) Sync(ctx context.Context) error {
	localBefore := ts.now().UnixMilli()
	serverTime, err := ts.getServerTime(ctx)
	if err != nil {
		return err
	}
	localAfter := ts.now().UnixMilli()

	// Assume network latency is symmetric
	localTime := localBefore + (localAfter-localBefore)/2

	ts.mu.Lock()
	ts.offset = serverTime - localTime
	ts.lastSync = ts.now()
	offset := ts.offset
	ts.mu.Unlock()

	log.Printf("time sync: offset=%dms", offset)
	return nil
}

// Now returns current time in ms adjusted for server offset.
func (ts *TimeSync) Now() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.now().UnixMilli() + ts.offset
}

// Offset returns the current time offset in milliseconds.
func (ts *TimeSync) Offset() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}

// LastSync reports when Sync last succeeded (zero if never).
func (ts *TimeSync) LastSync() time.Time {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.lastSync
}
