package health

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clambin/wiser-home/internal/controller"
	"github.com/clambin/wiser-home/pkg/pubsub"
	"github.com/stretchr/testify/assert"
)

func TestHealth_Handle(t *testing.T) {
	b := pubsub.New[controller.HomeSnapshot](slog.Default())
	h := New(b, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, &http.Request{})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	assert.Eventually(t, func() bool { return b.Subscribers() > 0 }, time.Second, 10*time.Millisecond)
	b.Publish(controller.HomeSnapshot{Boiler: true})

	assert.Eventually(t, func() bool {
		resp = httptest.NewRecorder()
		h.ServeHTTP(resp, &http.Request{})
		return resp.Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, resp.Body.String(), `"boiler": true`)
}
