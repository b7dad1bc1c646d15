package portal

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const scenarioPayload = `{
  "data": {
    "employmentsInScheduleTimeRange": {
      "edges": [
        {"node": {"userId": "u1", "id": "e1", "computedName": "Alex Kim", "email": "a@x.com", "currentStatus": "Active", "duringFrom": "2024-01-01", "image": "https://cdn/a.png"}},
        {"node": {"userId": "u2", "computedName": "Sam Lee", "email": "", "currentStatus": "Active"}},
        {"node": {"userId": "u3", "computedName": "Old Timer", "email": "o@x.com", "currentStatus": "TERMINATED (2023)"}},
        {"node": {"id": 77, "computedName": "No User Id", "email": "n@x.com", "currentStatus": "active"}},
        {"node": null}
      ]
    }
  }
}`

func TestMatchPayload(t *testing.T) {
	t.Run("разбирает ответ и исключает уволенных", func(t *testing.T) {
		nodes, ok := MatchPayload([]byte(scenarioPayload))
		require.True(t, ok)
		require.Len(t, nodes, 3)

		assert.Equal(t, "u1", nodes[0].ID)
		assert.Equal(t, "Alex Kim", nodes[0].Name)
		assert.Equal(t, "a@x.com", nodes[0].Email)
		assert.Equal(t, "2024-01-01", nodes[0].JoinedDate)
		assert.Equal(t, "https://cdn/a.png", nodes[0].Image)

		assert.Equal(t, "u2", nodes[1].ID)
		assert.Empty(t, nodes[1].Email)

		assert.Equal(t, "77", nodes[2].ID, "id используется, когда userId нет")
	})

	t.Run("userId важнее id", func(t *testing.T) {
		nodes, ok := MatchPayload([]byte(`{"data":{"employmentsInScheduleTimeRange":{"edges":[{"node":{"userId":"u9","id":"e9","email":"x@x.com"}}]}}}`))
		require.True(t, ok)
		require.Len(t, nodes, 1)
		assert.Equal(t, "u9", nodes[0].ID)
	})

	t.Run("пустой список рёбер - совпадение без сотрудников", func(t *testing.T) {
		nodes, ok := MatchPayload([]byte(`{"data":{"employmentsInScheduleTimeRange":{"edges":[]}}}`))
		assert.True(t, ok)
		assert.Empty(t, nodes)
	})

	notMatching := map[string]string{
		"не JSON":             `<html>oops</html>`,
		"другой запрос":       `{"data":{"viewer":{"id":"1"}}}`,
		"edges не список":     `{"data":{"employmentsInScheduleTimeRange":{"edges":{"node":{}}}}}`,
		"edges null":          `{"data":{"employmentsInScheduleTimeRange":{"edges":null}}}`,
		"ошибка GraphQL":      `{"errors":[{"message":"unauthorized"}],"data":null}`,
		"пустое тело":         ``,
		"массив вместо корня": `[1,2,3]`,
	}
	for name, body := range notMatching {
		t.Run(name, func(t *testing.T) {
			nodes, ok := MatchPayload([]byte(body))
			assert.False(t, ok)
			assert.Nil(t, nodes)
		})
	}
}

func TestIsTerminated(t *testing.T) {
	assert.True(t, IsTerminated("Terminated"))
	assert.True(t, IsTerminated("employment terminated"))
	assert.True(t, IsTerminated("TERMINATED"))
	assert.False(t, IsTerminated("active"))
	assert.False(t, IsTerminated(""))
}

func TestInterceptor_Observe(t *testing.T) {
	acc := NewAccumulator()
	icpt := NewInterceptor("/manager/graphql", acc, zap.NewNop())

	bodyCalls := 0
	body := func(raw string) func() ([]byte, error) {
		return func() ([]byte, error) {
			bodyCalls++
			return []byte(raw), nil
		}
	}

	icpt.Observe("https://portal/static/app.js", body(scenarioPayload))
	assert.Equal(t, 0, bodyCalls, "тело несовпавших URL не читается")

	icpt.Observe("https://portal/manager/graphql?op=Roster", body(`{"data":{"me":{}}}`))
	icpt.Observe("https://portal/manager/graphql", func() ([]byte, error) { return nil, errors.New("body gone") })
	assert.Equal(t, 0, acc.Len())
	assert.Equal(t, 0, acc.Payloads())

	icpt.Observe("https://portal/manager/graphql", body(scenarioPayload))
	icpt.Observe("https://portal/manager/graphql", body(scenarioPayload))
	assert.Equal(t, 6, acc.Len(), "ответы накапливаются за всю сессию")
	assert.Equal(t, 2, acc.Payloads())
}

func TestAccumulator_ConcurrentAppend(t *testing.T) {
	acc := NewAccumulator()
	icpt := NewInterceptor("/manager/graphql", acc, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			icpt.Observe("/manager/graphql", func() ([]byte, error) { return []byte(scenarioPayload), nil })
		}()
	}
	wg.Wait()

	assert.Equal(t, 150, acc.Len())
	snap := acc.Snapshot()
	require.Len(t, snap, 150)
	snap[0].ID = "changed"
	assert.NotEqual(t, "changed", acc.Snapshot()[0].ID, "Snapshot возвращает копию")
}

func TestInterceptor_DispatchDoesNotBlock(t *testing.T) {
	acc := NewAccumulator()
	icpt := NewInterceptor("/manager/graphql", acc, zap.NewNop())

	icpt.Dispatch("https://portal/static/app.js", func() ([]byte, error) {
		t.Error("тело несовпавшего URL не читается")
		return nil, nil
	})

	release := make(chan struct{})
	returned := make(chan struct{})
	go func() {
		icpt.Dispatch("https://portal/manager/graphql", func() ([]byte, error) {
			<-release
			return []byte(scenarioPayload), nil
		})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Dispatch ждёт тело ответа")
	}
	assert.Equal(t, 0, acc.Payloads())

	close(release)
	require.True(t, icpt.Drain())
	assert.Equal(t, 1, acc.Payloads())
	assert.Equal(t, 3, acc.Len())

	icpt.Dispatch("https://portal/manager/graphql", func() ([]byte, error) {
		t.Error("после Drain ответы не читаются")
		return nil, nil
	})
	assert.Equal(t, 1, acc.Payloads())
}

func TestInterceptor_DrainIsBounded(t *testing.T) {
	acc := NewAccumulator()
	icpt := NewInterceptor("/manager/graphql", acc, zap.NewNop())
	icpt.drainTimeout = 20 * time.Millisecond

	stuck := make(chan struct{})
	defer close(stuck)
	icpt.Dispatch("https://portal/manager/graphql", func() ([]byte, error) {
		<-stuck
		return nil, errors.New("соединение закрыто")
	})

	start := time.Now()
	assert.False(t, icpt.Drain())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, acc.Payloads())
}
