package environment

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/edo-build/edo/pkg/addr"
)

// Manager resolves a transform's declared environment addr to a
// registered Farm and mints Environments from it, satisfying
// transform.EnvironmentManager without pkg/transform needing to import
// this package's Farm registration details.
type Manager struct {
	mu    sync.RWMutex
	farms map[string]Farm
}

func NewManager() *Manager {
	return &Manager{farms: map[string]Farm{}}
}

// Register binds a, the addr transforms declare via Transform.Environment,
// to farm.
func (m *Manager) Register(a addr.Addr, farm Farm) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.farms[a.String()] = farm
}

// Create mints an Environment under the Farm registered at farmAddr.
func (m *Manager) Create(ctx context.Context, log logr.Logger, farmAddr addr.Addr, path string) (Environment, error) {
	m.mu.RLock()
	farm, ok := m.farms[farmAddr.String()]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("environment: no farm registered for %s", farmAddr.String())
	}
	return farm.Create(ctx, log, path)
}
