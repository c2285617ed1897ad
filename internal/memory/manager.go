// Package memory routes memory operations to per-configuration store
// adapters. Adapters are cached by a fingerprint of the LLM settings so a
// user switching providers gets a fresh store without restarting, and a
// store that went stale is rebuilt transparently.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/mnemos/mnemos/internal/adapters/metrics"
	"github.com/mnemos/mnemos/internal/domain"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/ports"
)

// StoreFactory builds a memory store for the given settings. Settings may
// be nil, in which case the server's default configuration applies.
type StoreFactory func(settings *models.LLMSettings) (ports.MemoryStore, error)

// Manager implements ports.MemoryService.
type Manager struct {
	mu      sync.RWMutex
	stores  map[string]ports.MemoryStore
	factory StoreFactory
}

func NewManager(factory StoreFactory) *Manager {
	return &Manager{
		stores:  make(map[string]ports.MemoryStore),
		factory: factory,
	}
}

// namespaceFor maps scope to a store namespace. Global memories live under
// the user id, local ones under a per-conversation namespace.
func namespaceFor(userID, conversationID, scope string) string {
	if scope == models.MemoryScopeLocal {
		return fmt.Sprintf("%s_conv_%s", userID, conversationID)
	}
	return userID
}

func (m *Manager) store(settings *models.LLMSettings) (ports.MemoryStore, error) {
	key := settings.Fingerprint()

	m.mu.RLock()
	s, ok := m.stores[key]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[key]; ok {
		return s, nil
	}

	s, err := m.factory(settings)
	if err != nil {
		return nil, err
	}
	m.stores[key] = s
	return s, nil
}

func (m *Manager) evict(settings *models.LLMSettings) {
	m.mu.Lock()
	delete(m.stores, settings.Fingerprint())
	m.mu.Unlock()
}

// staleStore reports whether the error indicates the adapter lost its
// backing namespace and should be rebuilt.
func staleStore(err error) bool {
	if errors.Is(err, domain.ErrNamespaceNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}

func (m *Manager) AddMemory(ctx context.Context, content, userID, conversationID, scope string, metadata map[string]any, settings *models.LLMSettings) (*models.MemoryAddResult, error) {
	s, err := m.store(settings)
	if err != nil {
		return nil, err
	}

	namespace := namespaceFor(userID, conversationID, scope)
	messages := []ports.StoreMessage{{Role: "user", Content: content}}

	augmented := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		augmented[k] = v
	}
	augmented["scope"] = scope
	augmented["real_user_id"] = userID
	metadata = augmented

	result, err := s.Add(ctx, messages, namespace, metadata)
	if err != nil && staleStore(err) {
		log.Printf("[memory] store stale, rebuilding: namespace=%s, error=%v", namespace, err)
		m.evict(settings)
		s, ferr := m.store(settings)
		if ferr != nil {
			return nil, ferr
		}
		result, err = s.Add(ctx, messages, namespace, metadata)
	}

	m.record("add", scope, err)
	return result, err
}

func (m *Manager) SearchMemories(ctx context.Context, query, userID, conversationID, scope string, limit int, settings *models.LLMSettings) (*models.MemorySearchResult, error) {
	s, err := m.store(settings)
	if err != nil {
		return nil, err
	}

	result, err := s.Search(ctx, query, namespaceFor(userID, conversationID, scope), limit)
	m.record("search", scope, err)
	return result, err
}

// GetMemories returns the union of the user's global memories and the
// conversation's local ones.
func (m *Manager) GetMemories(ctx context.Context, userID, conversationID string, limit int, settings *models.LLMSettings) (*models.MemorySearchResult, error) {
	s, err := m.store(settings)
	if err != nil {
		return nil, err
	}

	global, err := s.GetAll(ctx, namespaceFor(userID, conversationID, models.MemoryScopeGlobal), limit)
	if err != nil {
		m.record("get_all", models.MemoryScopeGlobal, err)
		return nil, err
	}

	if conversationID == "" {
		return global, nil
	}

	local, err := s.GetAll(ctx, namespaceFor(userID, conversationID, models.MemoryScopeLocal), limit)
	if err != nil {
		m.record("get_all", models.MemoryScopeLocal, err)
		return nil, err
	}

	return &models.MemorySearchResult{
		Results:   append(global.Results, local.Results...),
		Relations: append(global.Relations, local.Relations...),
	}, nil
}

func (m *Manager) UpdateMemory(ctx context.Context, memoryID, content string, settings *models.LLMSettings) error {
	s, err := m.store(settings)
	if err != nil {
		return err
	}
	err = s.Update(ctx, memoryID, content)
	m.record("update", "", err)
	return err
}

func (m *Manager) DeleteMemory(ctx context.Context, memoryID string, settings *models.LLMSettings) error {
	s, err := m.store(settings)
	if err != nil {
		return err
	}
	err = s.Delete(ctx, memoryID)
	m.record("delete", "", err)
	return err
}

// DeleteConversationMemories drops the conversation's local namespace.
// Called from conversation deletion so orphaned memories never accumulate.
func (m *Manager) DeleteConversationMemories(ctx context.Context, userID, conversationID string, settings *models.LLMSettings) error {
	s, err := m.store(settings)
	if err != nil {
		return err
	}
	err = s.DeleteAll(ctx, namespaceFor(userID, conversationID, models.MemoryScopeLocal))
	m.record("delete_all", models.MemoryScopeLocal, err)
	return err
}

// WarmUp builds the adapter ahead of the first request. Failures are
// logged and swallowed; the next real request will retry.
func (m *Manager) WarmUp(settings *models.LLMSettings) {
	if _, err := m.store(settings); err != nil {
		log.Printf("[memory] warm-up failed: fingerprint=%s, error=%v", settings.Fingerprint(), err)
	}
}

func (m *Manager) record(operation, scope string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MemoryOperationsTotal.WithLabelValues(operation, scope, status).Inc()
}
