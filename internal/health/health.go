// Package health reports dependency reachability and scheduler state.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	StatusOK            = "OK"
	StatusDegraded      = "DEGRADED"
	StatusError         = "ERROR"
	StatusNotConfigured = "NOT_CONFIGURED"

	SchedulerRunning = "RUNNING"
	SchedulerStopped = "STOPPED"
)

const probeTimeout = 3 * time.Second

// Probe checks one dependency. A nil Probe marks the dependency as not configured.
type Probe func(ctx context.Context) error

// SchedulerState is the read-only view of the ingestion scheduler.
type SchedulerState interface {
	IsRunning() bool
	CycleInProgress() bool
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type ScraperStatus struct {
	Marketplace     string `json:"marketplace"`
	Credential      string `json:"credential"`
	Scheduler       string `json:"scheduler"`
	CycleInProgress bool   `json:"cycle_in_progress"`
}

type Response struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Timestamp time.Time              `json:"timestamp"`
	Databases map[string]CheckResult `json:"databases"`
	Scraper   ScraperStatus          `json:"scraper"`
}

type namedProbe struct {
	name  string
	probe Probe
}

type Checker struct {
	service     string
	version     string
	marketplace string
	credential  bool
	scheduler   SchedulerState
	startTime   time.Time

	mu     sync.RWMutex
	probes []namedProbe
}

func NewChecker(service, version, marketplace string, credential bool, sched SchedulerState) *Checker {
	return &Checker{
		service:     service,
		version:     version,
		marketplace: marketplace,
		credential:  credential,
		scheduler:   sched,
		startTime:   time.Now(),
	}
}

// AddProbe registers a dependency under name. Probes are reported in the
// databases section of the response.
func (c *Checker) AddProbe(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes = append(c.probes, namedProbe{name: name, probe: p})
}

func (c *Checker) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", c.HealthHandler)
}

// HealthHandler always answers 200: the process is alive even when a
// dependency is not.
func (c *Checker) HealthHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.Check(ctx.Request.Context()))
}

// Check runs every probe concurrently and assembles the report.
func (c *Checker) Check(ctx context.Context) Response {
	c.mu.RLock()
	probes := append([]namedProbe(nil), c.probes...)
	c.mu.RUnlock()

	results := make([]CheckResult, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range probes {
		g.Go(func() error {
			results[i] = run(gctx, p.probe)
			return nil
		})
	}
	_ = g.Wait()

	resp := Response{
		Status:    StatusOK,
		Service:   c.service,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Databases: make(map[string]CheckResult, len(probes)),
		Scraper: ScraperStatus{
			Marketplace: c.marketplace,
			Credential:  StatusNotConfigured,
			Scheduler:   SchedulerStopped,
		},
	}
	for i, p := range probes {
		resp.Databases[p.name] = results[i]
		if results[i].Status == StatusError {
			resp.Status = StatusDegraded
		}
	}

	if c.credential {
		resp.Scraper.Credential = StatusOK
	} else {
		resp.Status = StatusDegraded
	}
	if c.scheduler != nil {
		if c.scheduler.IsRunning() {
			resp.Scraper.Scheduler = SchedulerRunning
		}
		resp.Scraper.CycleInProgress = c.scheduler.CycleInProgress()
	}
	return resp
}

func run(ctx context.Context, p Probe) CheckResult {
	if p == nil {
		return CheckResult{Status: StatusNotConfigured}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := p(ctx); err != nil {
		return CheckResult{
			Status:  StatusError,
			Message: err.Error(),
			Latency: time.Since(start).String(),
		}
	}
	return CheckResult{Status: StatusOK, Latency: time.Since(start).String()}
}
