package handler

import (
	"io"
	"net/http"
	"sync"
	"time"

	"projectflow/internal/notify"
	"projectflow/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const keepAliveInterval = 25 * time.Second

// NotificationHandler exposes the caller's session queue.
type NotificationHandler struct {
	sessions  *workflow.Sessions
	keepAlive time.Duration
	logger    *zap.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

func NewNotificationHandler(sessions *workflow.Sessions, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		sessions:  sessions,
		keepAlive: keepAliveInterval,
		logger:    logger,
		closing:   make(chan struct{}),
	}
}

// Close ends every open stream. http.Server.Shutdown does not cancel
// request contexts, so the server registers this with RegisterOnShutdown.
func (h *NotificationHandler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

func (h *NotificationHandler) queue(c *gin.Context) *notify.Queue {
	return h.sessions.Queue(c.GetString(UserIDKey))
}

// List returns the active notifications and their position stacks.
func (h *NotificationHandler) List(c *gin.Context) {
	q := h.queue(c)
	snap := q.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"revision": snap.Revision,
		"items":    snap.Items,
		"stacks":   q.Stacks(),
	})
}

// Dismiss removes one notification. Unknown ids are a no-op.
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	dismissed := h.queue(c).Dismiss(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"dismissed": dismissed})
}

func (h *NotificationHandler) Clear(c *gin.Context) {
	h.queue(c).ClearAll()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// latest keeps only the newest snapshot for a slow stream consumer; a
// newer revision supersedes everything before it.
type latest struct {
	mu     sync.Mutex
	snap   notify.Snapshot
	signal chan struct{}
}

func (l *latest) offer(s notify.Snapshot) {
	l.mu.Lock()
	if s.Revision > l.snap.Revision || l.snap.Items == nil {
		l.snap = s
	}
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *latest) get() notify.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Stream pushes a "notifications" server-sent event with the full snapshot
// after every queue change, starting with the current state.
func (h *NotificationHandler) Stream(c *gin.Context) {
	q := h.queue(c)
	box := &latest{signal: make(chan struct{}, 1)}
	cancel := q.Subscribe(box.offer)
	defer cancel()
	box.offer(q.Snapshot())

	h.logger.Debug("Notification stream opened", zap.String("user_id", c.GetString(UserIDKey)))
	defer h.logger.Debug("Notification stream closed", zap.String("user_id", c.GetString(UserIDKey)))

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-h.closing:
			return false
		case <-box.signal:
			c.SSEvent("notifications", box.get())
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}
