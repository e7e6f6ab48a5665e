package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookstack-dev/library-reservations/internal/monitor"
	"github.com/bookstack-dev/library-reservations/internal/notifier"
	"github.com/bookstack-dev/library-reservations/internal/processor"
)

type AdminHandler struct {
	monitor    *monitor.Monitor
	processor  *processor.Processor
	dispatcher *notifier.Dispatcher
}

func NewAdminHandler(m *monitor.Monitor, p *processor.Processor, d *notifier.Dispatcher) *AdminHandler {
	return &AdminHandler{monitor: m, processor: p, dispatcher: d}
}

// RunVerification triggers one verification cycle outside the schedule.
func (h *AdminHandler) RunVerification(c *gin.Context) {
	h.monitor.RunVerificationNow(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"message": "verification cycle completed",
		"cycles":  h.monitor.Cycles(),
	})
}

func (h *AdminHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"monitor_running":       h.monitor.Running(),
		"monitor_cycles":        h.monitor.Cycles(),
		"request_queue_depth":   h.processor.QueueDepth(),
		"pending_notifications": h.dispatcher.PendingCount(),
	})
}
