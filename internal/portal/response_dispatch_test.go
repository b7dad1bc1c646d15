package portal

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// blockingResponse отдаёт тело только после того, как обработчик события вернул управление.
type blockingResponse struct {
	playwright.Response
	url     string
	release chan struct{}
	reads   chan struct{}
}

func (r *blockingResponse) URL() string { return r.url }

func (r *blockingResponse) Body() ([]byte, error) {
	close(r.reads)
	<-r.release
	return []byte(scenarioPayload), nil
}

func TestResponseHandler_ReadsBodyOutsideEventGoroutine(t *testing.T) {
	acc := NewAccumulator()
	icpt := NewInterceptor("/manager/graphql", acc, zap.NewNop())
	handler := responseHandler(icpt)

	resp := &blockingResponse{
		url:     "https://portal/manager/graphql",
		release: make(chan struct{}),
		reads:   make(chan struct{}),
	}

	returned := make(chan struct{})
	go func() {
		handler(resp)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("обработчик события ждёт тело ответа")
	}
	close(resp.release)

	select {
	case <-resp.reads:
	case <-time.After(time.Second):
		t.Fatal("тело совпавшего ответа не прочитано")
	}
	require.True(t, icpt.Drain())
	assert.Equal(t, 3, acc.Len())
}

func TestResponseHandler_SkipsForeignURLs(t *testing.T) {
	acc := NewAccumulator()
	icpt := NewInterceptor("/manager/graphql", acc, zap.NewNop())

	resp := &blockingResponse{url: "https://portal/static/app.js", reads: make(chan struct{})}
	responseHandler(icpt)(resp)

	require.True(t, icpt.Drain())
	select {
	case <-resp.reads:
		t.Fatal("тело чужого ответа прочитано")
	default:
	}
	assert.Equal(t, 0, acc.Payloads())
}

func TestChromedpSession_CloseWaitsForBodyFetch(t *testing.T) {
	acc := NewAccumulator()
	icpt := NewInterceptor("/manager/graphql", acc, zap.NewNop())

	var cancels int
	s := &chromedpSession{
		logger:        zap.NewNop(),
		icpt:          icpt,
		browserCtx:    context.Background(),
		allocCancel:   func() { cancels++ },
		browserCancel: func() { cancels++ },
		inflight:      make(map[network.RequestID]struct{}),
		matched:       make(map[network.RequestID]string),
	}

	s.onEvent(&network.EventRequestWillBeSent{RequestID: "r1"})
	s.onEvent(&network.EventResponseReceived{
		RequestID: "r1",
		Response:  &network.Response{URL: "https://portal/manager/graphql"},
	})
	s.onEvent(&network.EventLoadingFinished{RequestID: "r1"})

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 2, cancels, "браузер закрывается один раз")
	assert.Empty(t, s.inflight)
	assert.Empty(t, s.matched)

	icpt.mu.Lock()
	drained := icpt.drained
	icpt.mu.Unlock()
	assert.True(t, drained)
}
