// Package diagnostics checks connectivity to the image API and the validity
// of the GoFile credentials. Every check runs once; nothing is retried,
// cached or counted.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/manash/pollgen/internal/pollinations"
	"github.com/manash/pollgen/internal/upload"
)

const DefaultTimeout = 15 * time.Second

// RequiredModels must be listed by the API for generation and editing to work.
var RequiredModels = []string{"flux", "kontext"}

type StepStatus int

const (
	StepPassed StepStatus = iota
	StepFailed
	StepWarning
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

type Step struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

type Report struct {
	Steps    []Step
	Duration time.Duration
}

// OK reports whether no step failed. Warnings and skips are acceptable.
func (r Report) OK() bool {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return false
		}
	}
	return true
}

func (r Report) Count(status StepStatus) int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

// AccountChecker is the part of the GoFile client the probe needs.
type AccountChecker interface {
	Configured() bool
	AccountID(ctx context.Context) (string, error)
	Account(ctx context.Context, id string) (*upload.Account, error)
}

type Options struct {
	Endpoint   pollinations.Endpoint
	Account    AccountChecker
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Probe struct {
	endpoint   pollinations.Endpoint
	account    AccountChecker
	httpClient *http.Client
	logger     *zap.Logger
}

func New(opts Options) *Probe {
	p := &Probe{
		endpoint:   opts.Endpoint,
		account:    opts.Account,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
	if p.endpoint.BaseURL == "" {
		p.endpoint = pollinations.NewEndpoint("")
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Run executes every check and returns the report. It never returns an
// error; failures are recorded as steps.
func (p *Probe) Run(ctx context.Context) Report {
	start := time.Now()
	var steps []Step

	modelsStep, available := p.checkAPI(ctx)
	steps = append(steps, modelsStep)
	steps = append(steps, p.checkRequiredModels(modelsStep, available))
	steps = append(steps, p.checkGoFile(ctx)...)

	for _, s := range steps {
		p.log(s)
	}
	return Report{Steps: steps, Duration: time.Since(start)}
}

func (p *Probe) checkAPI(ctx context.Context) (Step, []string) {
	step := Step{Name: "Pollinations API reachable"}
	start := time.Now()
	names, err := p.listModels(ctx)
	step.Latency = time.Since(start)
	if err != nil {
		step.Status = StepFailed
		step.Error = err
		return step, nil
	}
	step.Status = StepPassed
	step.Message = fmt.Sprintf("%d models found", len(names))
	return step, names
}

func (p *Probe) checkRequiredModels(api Step, available []string) Step {
	step := Step{Name: "Required models available"}
	if api.Status != StepPassed {
		step.Status = StepSkipped
		step.Message = "API unreachable"
		return step
	}

	var missing []string
	for _, m := range RequiredModels {
		if !slices.Contains(available, m) {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		step.Status = StepWarning
		step.Message = fmt.Sprintf("missing %v", missing)
		return step
	}
	step.Status = StepPassed
	step.Message = fmt.Sprintf("%v present", RequiredModels)
	return step
}

func (p *Probe) checkGoFile(ctx context.Context) []Step {
	configured := Step{Name: "GoFile credentials configured"}
	if p.account == nil || !p.account.Configured() {
		configured.Status = StepWarning
		configured.Message = "not configured, image editing will not work"
		return []Step{
			configured,
			{Name: "GoFile account lookup", Status: StepSkipped},
			{Name: "GoFile token valid", Status: StepSkipped},
		}
	}
	configured.Status = StepPassed

	lookup := Step{Name: "GoFile account lookup"}
	start := time.Now()
	id, err := p.account.AccountID(ctx)
	lookup.Latency = time.Since(start)
	if err != nil {
		lookup.Status = StepFailed
		lookup.Error = err
		return []Step{configured, lookup, {Name: "GoFile token valid", Status: StepSkipped}}
	}
	lookup.Status = StepPassed
	lookup.Message = "account " + id

	valid := Step{Name: "GoFile token valid"}
	start = time.Now()
	acct, err := p.account.Account(ctx, id)
	valid.Latency = time.Since(start)
	if err != nil {
		valid.Status = StepFailed
		valid.Error = err
	} else {
		valid.Status = StepPassed
		valid.Message = acct.Email
	}
	return []Step{configured, lookup, valid}
}

// listModels accepts either a JSON array of names or an array of objects
// carrying a "name" field.
func (p *Probe) listModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint.ModelsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return parseModels(data)
}

func parseModels(data []byte) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid models response: %w", err)
	}

	names := make([]string, 0, len(raw))
	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			names = append(names, name)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Name != "" {
			names = append(names, obj.Name)
		}
	}
	return names, nil
}

func (p *Probe) log(s Step) {
	fields := []zap.Field{
		zap.String("check", s.Name),
		zap.String("status", s.Status.String()),
		zap.String("message", s.Message),
	}
	switch s.Status {
	case StepFailed:
		p.logger.Error("diagnostic check failed", append(fields, zap.Error(s.Error))...)
	case StepWarning:
		p.logger.Warn("diagnostic check warning", fields...)
	default:
		p.logger.Info("diagnostic check", fields...)
	}
}
