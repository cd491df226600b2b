// Package session tracks the chain of images produced during one interactive
// run so edits can build on the current image and be undone.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoIteration  = errors.New("no current image")
	ErrAtFirstImage = errors.New("already at first image")
)

type Operation string

const (
	OpGenerate Operation = "generate"
	OpEdit     Operation = "edit"
	OpOpen     Operation = "open"
)

type Iteration struct {
	ID        string
	ParentID  string
	Operation Operation
	Prompt    string
	Model     string
	ImagePath string
	Timestamp time.Time
}

type Manager struct {
	mu         sync.Mutex
	id         string
	startedAt  time.Time
	model      string
	iterations []*Iteration
	byID       map[string]*Iteration
	current    *Iteration
	now        func() time.Time
}

func NewManager(defaultModel string) *Manager {
	return &Manager{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		model:     defaultModel,
		byID:      make(map[string]*Iteration),
		now:       time.Now,
	}
}

func (m *Manager) ID() string {
	return m.id
}

func (m *Manager) StartedAt() time.Time {
	return m.startedAt
}

func (m *Manager) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// SetModel changes the model for later generations. An empty name keeps the
// configured default.
func (m *Manager) SetModel(model string) {
	m.mu.Lock()
	m.model = model
	m.mu.Unlock()
}

// Add records a new image as a child of the current one and makes it
// current.
func (m *Manager) Add(op Operation, prompt, model, path string) *Iteration {
	m.mu.Lock()
	defer m.mu.Unlock()

	iter := &Iteration{
		ID:        uuid.NewString(),
		Operation: op,
		Prompt:    prompt,
		Model:     model,
		ImagePath: path,
		Timestamp: m.now(),
	}
	if m.current != nil {
		iter.ParentID = m.current.ID
	}
	m.iterations = append(m.iterations, iter)
	m.byID[iter.ID] = iter
	m.current = iter
	return iter
}

func (m *Manager) Current() *Iteration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) CurrentImagePath() string {
	if it := m.Current(); it != nil {
		return it.ImagePath
	}
	return ""
}

// Undo moves back to the parent of the current image. The undone image stays
// in the history.
func (m *Manager) Undo() (*Iteration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, ErrNoIteration
	}
	parent, ok := m.byID[m.current.ParentID]
	if !ok {
		return nil, ErrAtFirstImage
	}
	m.current = parent
	return parent, nil
}

// History returns every image of the session, oldest first.
func (m *Manager) History() []Iteration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Iteration, len(m.iterations))
	for i, it := range m.iterations {
		out[i] = *it
	}
	return out
}
