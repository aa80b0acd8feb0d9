package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"library-backend/internal/model"
)

// mockSender records every send and answers with a fixed status code.
type mockSender struct {
	mu     sync.Mutex
	status int
	sent   []sentCall
}

type sentCall struct {
	endpoint string
	payload  string
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentCall{endpoint: sub.Endpoint, payload: string(payload)})
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func (m *mockSender) calls() []sentCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentCall, len(m.sent))
	copy(out, m.sent)
	return out
}

func newTestPool(t *testing.T, status int) (*WorkerPool, *mockSender, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PushSubscription{}))

	sender := &mockSender{status: status}
	pool := NewWorkerPool(1, db, nil)
	pool.sender = sender
	return pool, sender, db
}

func TestSendFansOutToAllSubscriptions(t *testing.T) {
	pool, sender, db := newTestPool(t, http.StatusCreated)

	require.NoError(t, db.Create(&model.PushSubscription{Endpoint: "https://push/one", P256DH: "p1", Auth: "a1", ReaderID: 7}).Error)
	require.NoError(t, db.Create(&model.PushSubscription{Endpoint: "https://push/two", P256DH: "p2", Auth: "a2", ReaderID: 7}).Error)
	require.NoError(t, db.Create(&model.PushSubscription{Endpoint: "https://push/other", P256DH: "p3", Auth: "a3", ReaderID: 8}).Error)

	pool.sendToReader(context.Background(), Job{ReaderID: 7, Message: "your reserved book is ready"})

	calls := sender.calls()
	require.Len(t, calls, 2)
	endpoints := []string{calls[0].endpoint, calls[1].endpoint}
	assert.ElementsMatch(t, []string{"https://push/one", "https://push/two"}, endpoints)
	assert.Equal(t, "your reserved book is ready", calls[0].payload)
}

func TestSendSkipsReaderWithoutSubscription(t *testing.T) {
	pool, sender, _ := newTestPool(t, http.StatusCreated)

	pool.sendToReader(context.Background(), Job{ReaderID: 42, Message: "hello"})

	assert.Empty(t, sender.calls())
}

func TestExpiredSubscriptionIsDeleted(t *testing.T) {
	pool, sender, db := newTestPool(t, http.StatusGone)

	require.NoError(t, db.Create(&model.PushSubscription{Endpoint: "https://push/stale", P256DH: "p", Auth: "a", ReaderID: 3}).Error)

	pool.sendToReader(context.Background(), Job{ReaderID: 3, Message: "overdue"})

	require.Len(t, sender.calls(), 1)
	var count int64
	require.NoError(t, db.Model(&model.PushSubscription{}).Count(&count).Error)
	assert.Zero(t, count, "a 410 response removes the subscription")
}

func TestNotifyDropsWhenQueueIsFull(t *testing.T) {
	pool, _, _ := newTestPool(t, http.StatusCreated)

	// Workers are not started, so the buffer (size*4) fills and the
	// overflow message is dropped instead of blocking the caller.
	capacity := cap(pool.Jobs())
	for i := 0; i < capacity+1; i++ {
		pool.Notify(int64(i), "msg")
	}

	assert.Len(t, pool.Jobs(), capacity)
}

func TestWorkerDrainsQueue(t *testing.T) {
	pool, sender, db := newTestPool(t, http.StatusCreated)

	require.NoError(t, db.Create(&model.PushSubscription{Endpoint: "https://push/alice", P256DH: "p", Auth: "a", ReaderID: 1}).Error)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	pool.Notify(1, "loan is overdue")

	require.Eventually(t, func() bool {
		return len(sender.calls()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "loan is overdue", sender.calls()[0].payload)
}
