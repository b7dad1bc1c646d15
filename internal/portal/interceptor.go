package portal

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"roster-sync/internal/dto"
)

// Accumulator собирает сотрудников за один запуск. Колбэки драйверов приходят
// из горутин библиотек, поэтому добавление под мьютексом.
type Accumulator struct {
	mu       sync.Mutex
	nodes    []dto.ExternalEmployeeNode
	payloads int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Append(nodes ...dto.ExternalEmployeeNode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nodes = append(a.nodes, nodes...)
	a.payloads++
}

func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.nodes)
}

// Payloads - сколько совпавших ответов было принято, включая пустые.
func (a *Accumulator) Payloads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.payloads
}

func (a *Accumulator) Snapshot() []dto.ExternalEmployeeNode {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]dto.ExternalEmployeeNode, len(a.nodes))
	copy(out, a.nodes)
	return out
}

const defaultDrainTimeout = 10 * time.Second

// Interceptor фильтрует ответы страницы по подстроке URL и складывает
// распознанных сотрудников в Accumulator.
type Interceptor struct {
	urlMatch string
	acc      *Accumulator
	logger   *zap.Logger

	mu           sync.Mutex
	drained      bool
	pending      sync.WaitGroup
	drainTimeout time.Duration
}

func NewInterceptor(urlMatch string, acc *Accumulator, logger *zap.Logger) *Interceptor {
	return &Interceptor{
		urlMatch:     urlMatch,
		acc:          acc,
		logger:       logger.Named("Interceptor"),
		drainTimeout: defaultDrainTimeout,
	}
}

func (i *Interceptor) Matches(url string) bool {
	return i.urlMatch != "" && strings.Contains(url, i.urlMatch)
}

// Observe вызывается драйвером на каждый ответ. Тело читается только для
// совпавших URL; ошибки чтения и неподходящая форма ответа не являются ошибками.
func (i *Interceptor) Observe(url string, body func() ([]byte, error)) {
	if !i.Matches(url) {
		return
	}
	raw, err := body()
	if err != nil {
		i.logger.Debug("Не удалось прочитать тело ответа", zap.String("url", url), zap.Error(err))
		return
	}
	nodes, ok := MatchPayload(raw)
	if !ok {
		return
	}
	i.acc.Append(nodes...)
	i.logger.Debug("Перехвачен ответ с сотрудниками",
		zap.Int("nodes", len(nodes)),
		zap.Int("total", i.acc.Len()))
}

// Dispatch - вход для обработчиков событий браузера. Не блокирует: тело
// совпавшего ответа читается в отдельной горутине, которую дожидается Drain.
// После Drain новые ответы отбрасываются.
func (i *Interceptor) Dispatch(url string, body func() ([]byte, error)) {
	if !i.Matches(url) {
		return
	}
	i.mu.Lock()
	if i.drained {
		i.mu.Unlock()
		i.logger.Debug("Ответ пришёл после завершения перехвата", zap.String("url", url))
		return
	}
	i.pending.Add(1)
	i.mu.Unlock()

	go func() {
		defer i.pending.Done()
		i.Observe(url, body)
	}()
}

// Drain закрывает приём ответов и ждёт уже запущенные чтения тел, но не
// дольше drainTimeout. false - часть тел не дочитана.
func (i *Interceptor) Drain() bool {
	i.mu.Lock()
	i.drained = true
	i.mu.Unlock()

	done := make(chan struct{})
	go func() {
		i.pending.Wait()
		close(done)
	}()

	timer := time.NewTimer(i.drainTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		i.logger.Warn("Не дождались чтения тел ответов", zap.Duration("timeout", i.drainTimeout))
		return false
	}
}

func (i *Interceptor) Accumulator() *Accumulator {
	return i.acc
}

// MatchPayload пытается разобрать тело как ответ employmentsInScheduleTimeRange.
// ok=false означает, что ответ нам не интересен.
func MatchPayload(body []byte) ([]dto.ExternalEmployeeNode, bool) {
	var payload dto.EmploymentsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}
	if payload.Data == nil || payload.Data.EmploymentsInScheduleTimeRange == nil ||
		payload.Data.EmploymentsInScheduleTimeRange.Edges == nil {
		return nil, false
	}

	edges := *payload.Data.EmploymentsInScheduleTimeRange.Edges
	nodes := make([]dto.ExternalEmployeeNode, 0, len(edges))
	for _, edge := range edges {
		if edge.Node == nil {
			continue
		}
		n := edge.Node
		if IsTerminated(n.CurrentStatus) {
			continue
		}
		id := string(n.UserID)
		if id == "" {
			id = string(n.ID)
		}
		nodes = append(nodes, dto.ExternalEmployeeNode{
			ID:            id,
			Name:          n.ComputedName,
			Email:         n.Email,
			CurrentStatus: n.CurrentStatus,
			Image:         n.Image,
			JoinedDate:    n.DuringFrom,
		})
	}
	return nodes, true
}

func IsTerminated(status string) bool {
	return strings.Contains(strings.ToLower(status), "terminated")
}
