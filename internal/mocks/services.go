package mocks

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/points-ledger-engine/internal/models"
	"github.com/points-ledger-engine/internal/service"
)

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamLedgerFunc func(ctx context.Context, w io.Writer, format string) error
	Formats          []string
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func NewMockExportService() *MockExportService {
	return &MockExportService{Formats: make([]string, 0)}
}

func (m *MockExportService) StreamLedger(ctx context.Context, w io.Writer, format string) error {
	m.Formats = append(m.Formats, format)
	if m.StreamLedgerFunc != nil {
		return m.StreamLedgerFunc(ctx, w, format)
	}
	return nil
}

// MockReconcileService is a mock implementation of ReconcileService
type MockReconcileService struct {
	SweepFunc func(ctx context.Context) (*models.SweepResult, error)
	calls     int32
}

// Verify interface compliance
var _ service.ReconcileService = (*MockReconcileService)(nil)

func (m *MockReconcileService) Sweep(ctx context.Context) (*models.SweepResult, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.SweepFunc != nil {
		return m.SweepFunc(ctx)
	}
	return &models.SweepResult{}, nil
}

// Calls returns how many sweeps ran
func (m *MockReconcileService) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

// MockLedgerService is a mock implementation of LedgerService. Only the
// audit and balance reads are scriptable.
type MockLedgerService struct {
	AuditFunc   func(ctx context.Context) (*models.AuditReport, error)
	BalanceFunc func(ctx context.Context, userID string) (*models.Balance, error)
	audits      int32
}

// Verify interface compliance
var _ service.LedgerService = (*MockLedgerService)(nil)

func (m *MockLedgerService) ApplyDelta(ctx context.Context, userID string, delta int64, reason models.Reason, referenceID string) (int64, error) {
	return 0, nil
}

func (m *MockLedgerService) GetUserBalance(ctx context.Context, userID string) (*models.Balance, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx, userID)
	}
	return &models.Balance{UserID: userID}, nil
}

func (m *MockLedgerService) History(ctx context.Context, userID string, limit int) ([]*models.LedgerEntry, error) {
	return []*models.LedgerEntry{}, nil
}

func (m *MockLedgerService) Adjust(ctx context.Context, userID string, delta int64, note string) (int64, error) {
	return 0, nil
}

func (m *MockLedgerService) Audit(ctx context.Context) (*models.AuditReport, error) {
	atomic.AddInt32(&m.audits, 1)
	if m.AuditFunc != nil {
		return m.AuditFunc(ctx)
	}
	return &models.AuditReport{Drifts: []models.BalanceDrift{}}, nil
}

// Audits returns how many audits ran
func (m *MockLedgerService) Audits() int {
	return int(atomic.LoadInt32(&m.audits))
}
