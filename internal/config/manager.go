package config

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"slices"
	"sync"
	"time"

	logx "httpcron/pkg/logx"
)

// Manager holds the committed job list and hands reloaded versions to
// subscribers.
type Manager struct {
	path string
	log  logx.Logger

	// check runs on reloads after Validate.
	check func(ctx context.Context, cfg *Config) error

	mu      sync.RWMutex
	current *Config
	digest  uint64

	// subMu is held while sending so Unsubscribe never closes a channel
	// that publish is writing to.
	subMu sync.Mutex
	subs  []chan *Config
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop()}
}

func (m *Manager) SetLogger(log logx.Logger) {
	if log.IsZero() {
		log = logx.Nop()
	}
	m.log = log
}

// SetValidator adds a check that a reloaded config must pass before it
// replaces the current one.
func (m *Manager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.check = fn
}

// Parse reads and decodes the file. Nothing is committed.
func (m *Manager) Parse() (*Config, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return Decode(m.path, data)
}

// Load is Parse + Validate + Commit, used once at startup.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *Manager) Commit(cfg *Config) {
	d := digest(cfg)
	m.mu.Lock()
	m.current, m.digest = cfg, d
	m.mu.Unlock()
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	i := slices.Index(m.subs, ch)
	if i < 0 {
		return
	}
	m.subs = slices.Delete(m.subs, i, i+1)
	close(ch)
}

// publish never blocks. When a subscriber is full its oldest pending config
// is discarded; only the latest job list matters.
func (m *Manager) publish(cfg *Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		if offer(ch, cfg) {
			continue
		}
		select {
		case <-ch:
		default:
		}
		if !offer(ch, cfg) {
			m.log.Debug("config update dropped for slow subscriber", logx.Int("buffer", cap(ch)))
		}
	}
}

func offer(ch chan *Config, cfg *Config) bool {
	select {
	case ch <- cfg:
		return true
	default:
		return false
	}
}

// reload re-reads the file and publishes it when the decoded content
// differs from the committed one and passes validation. It reports whether
// a new config was published.
func (m *Manager) reload(ctx context.Context) bool {
	cfg, err := m.Parse()
	if err != nil {
		m.log.Warn("config parse failed", logx.String("path", m.path), logx.Err(err))
		return false
	}

	d := digest(cfg)
	m.mu.RLock()
	same := d == m.digest
	m.mu.RUnlock()
	if same {
		m.log.Debug("config content unchanged", logx.String("path", m.path))
		return false
	}

	if err := m.accept(ctx, cfg); err != nil {
		m.log.Warn("config rejected; keeping current jobs", logx.String("path", m.path), logx.Err(err))
		return false
	}

	m.Commit(cfg)
	m.publish(cfg)
	m.log.Debug("config published",
		logx.String("path", m.path),
		logx.Int("jobs", len(cfg.Jobs)),
		logx.String("digest", fmt.Sprintf("%016x", d)),
	)
	return true
}

func (m *Manager) accept(ctx context.Context, cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if m.check == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.check(ctx, cfg)
}

// digest fingerprints decoded content, so formatting-only edits are not
// treated as changes.
func digest(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}
