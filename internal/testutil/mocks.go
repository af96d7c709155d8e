package testutil

import (
	"context"
	"sync"

	"3tcapital/ms_cartaporte_core/internal/core/audit"
	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

// MockPostalCodeCatalog is a mock implementation of cartaporte.PostalCodeCatalog.
type MockPostalCodeCatalog struct {
	PostalCodeExistsFunc func(ctx context.Context, code string) (bool, error)
}

// PostalCodeExists calls the mock function if set, otherwise reports every code as known.
func (m *MockPostalCodeCatalog) PostalCodeExists(ctx context.Context, code string) (bool, error) {
	if m.PostalCodeExistsFunc != nil {
		return m.PostalCodeExistsFunc(ctx, code)
	}
	return true, nil
}

// MockCodeCatalog is a mock implementation of cartaporte.CodeCatalog.
type MockCodeCatalog struct {
	HasCodeFunc func(ctx context.Context, kind cartaporte.CatalogKind, code string) (bool, error)
}

// HasCode calls the mock function if set, otherwise reports every code as known.
func (m *MockCodeCatalog) HasCode(ctx context.Context, kind cartaporte.CatalogKind, code string) (bool, error) {
	if m.HasCodeFunc != nil {
		return m.HasCodeFunc(ctx, kind, code)
	}
	return true, nil
}

// MockIdentitySource is a mock implementation of cartaporte.IdentitySource.
type MockIdentitySource struct {
	ResolveIdentityFunc func(ctx context.Context, rfc string) (cartaporte.Identity, error)
}

// ResolveIdentity calls the mock function if set, otherwise returns ErrIdentityNotFound.
func (m *MockIdentitySource) ResolveIdentity(ctx context.Context, rfc string) (cartaporte.Identity, error) {
	if m.ResolveIdentityFunc != nil {
		return m.ResolveIdentityFunc(ctx, rfc)
	}
	return cartaporte.Identity{}, cartaporte.ErrIdentityNotFound
}

// MockStamper is a mock implementation of cartaporte.Stamper.
type MockStamper struct {
	StampFunc func(ctx context.Context, xml string) (*cartaporte.StampResult, error)
}

// Stamp calls the mock function if set, otherwise returns nil result and error.
func (m *MockStamper) Stamp(ctx context.Context, xml string) (*cartaporte.StampResult, error) {
	if m.StampFunc != nil {
		return m.StampFunc(ctx, xml)
	}
	return nil, nil
}

// MockDocumentRepository is a mock implementation of cartaporte.DocumentRepository.
type MockDocumentRepository struct {
	SaveFunc       func(ctx context.Context, doc cartaporte.StampedDocument) error
	FindByUUIDFunc func(ctx context.Context, uuid string) (*cartaporte.StampedDocument, error)
}

// Save calls the mock function if set, otherwise returns nil.
func (m *MockDocumentRepository) Save(ctx context.Context, doc cartaporte.StampedDocument) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, doc)
	}
	return nil
}

// FindByUUID calls the mock function if set, otherwise returns ErrDocumentNotFound.
func (m *MockDocumentRepository) FindByUUID(ctx context.Context, uuid string) (*cartaporte.StampedDocument, error) {
	if m.FindByUUIDFunc != nil {
		return m.FindByUUIDFunc(ctx, uuid)
	}
	return nil, cartaporte.ErrDocumentNotFound
}

// MockAuditRepository records saved PAC calls in memory.
type MockAuditRepository struct {
	mu    sync.Mutex
	Calls []audit.PACCall

	SaveFunc func(ctx context.Context, call audit.PACCall) error
}

// Save records the call and then delegates to SaveFunc when set.
func (m *MockAuditRepository) Save(ctx context.Context, call audit.PACCall) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	m.mu.Unlock()
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, call)
	}
	return nil
}

// FindByCorrelationID returns the recorded calls with the given correlation id.
func (m *MockAuditRepository) FindByCorrelationID(ctx context.Context, correlationID string) ([]audit.PACCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.PACCall
	for _, c := range m.Calls {
		if c.CorrelationID == correlationID {
			out = append(out, c)
		}
	}
	return out, nil
}

// SavedCalls returns a snapshot of the recorded calls.
func (m *MockAuditRepository) SavedCalls() []audit.PACCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.PACCall(nil), m.Calls...)
}
