// health.go — обработчики health endpoints.
// /health/live — liveness-проверка (процесс жив)
// /health/ready — readiness-проверка (MongoDB, PostgreSQL, опционально JWKS IdP)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/tgmedia-indexer/internal/config"
)

// serviceName — имя сервиса в ответах health endpoints.
const serviceName = "tgmedia-indexer"

// Статусы health check.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	mongoChecker ReadinessChecker
	pgChecker    ReadinessChecker
	idpChecker   ReadinessChecker
	promHandler  http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// mongoChecker и pgChecker обязательны (nil — readiness вернёт "fail"),
// idpChecker — nil, если HTTP API отключён.
func NewHealthHandler(mongoChecker, pgChecker, idpChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		mongoChecker: mongoChecker,
		pgChecker:    pgChecker,
		idpChecker:   idpChecker,
		promHandler:  promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness-проверки.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness-проверки.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		MongoDB    healthCheckResult  `json:"mongodb"`
		PostgreSQL healthCheckResult  `json:"postgresql"`
		IdP        *healthCheckResult `json:"idp,omitempty"`
	} `json:"checks"`
}

// HealthLive — liveness-проверка. Возвращает 200, если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness-проверка. Возвращает 200 (ok/degraded) или 503 (fail).
// Недоступность IdP деградирует статус, но не делает сервис неготовым:
// бот продолжает работать без HTTP API.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	resp.Checks.MongoDB = check(h.mongoChecker)
	resp.Checks.PostgreSQL = check(h.pgChecker)
	statuses := []string{resp.Checks.MongoDB.Status, resp.Checks.PostgreSQL.Status}

	if h.idpChecker != nil {
		idp := check(h.idpChecker)
		resp.Checks.IdP = &idp
		if idp.Status == statusFail {
			statuses = append(statuses, statusDegraded)
		} else {
			statuses = append(statuses, idp.Status)
		}
	}

	resp.Status = overallStatus(statuses...)

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// check выполняет проверку; nil checker считается неинициализированным.
func check(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return statusOK
}
