package llm

import "sync"

// BaseProvider provides thread-safe model-name management shared by all
// provider implementations.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the currently configured model name.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name for subsequent requests.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}
