package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecoregula/permitflow/internal/application/port"
	"github.com/ecoregula/permitflow/internal/domain/entity"
)

// Mock repositories in the func-field style: each method delegates to its
// field when set and falls back to a benign default otherwise.

type mockRequestRepo struct {
	createFunc         func(ctx context.Context, req *entity.PermitRequest) error
	getByIDFunc        func(ctx context.Context, id int64) (*entity.PermitRequest, error)
	updateFunc         func(ctx context.Context, req *entity.PermitRequest) error
	oldestTechFunc     func(ctx context.Context) (*entity.PermitRequest, error)
	oldestChiefFunc    func(ctx context.Context) (*entity.PermitRequest, error)
	listPendingFunc    func(ctx context.Context, role entity.Role, limit, offset int) ([]*entity.PermitRequest, error)
	itemsByRequestFunc func(ctx context.Context, requestID int64) ([]entity.LineItem, error)
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.PermitRequest) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	req.ID = 1
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id int64) (*entity.PermitRequest, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockRequestRepo) Update(ctx context.Context, req *entity.PermitRequest) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, req)
	}
	return nil
}

func (m *mockRequestRepo) OldestInTechnicianQueue(ctx context.Context) (*entity.PermitRequest, error) {
	if m.oldestTechFunc != nil {
		return m.oldestTechFunc(ctx)
	}
	return nil, nil
}

func (m *mockRequestRepo) OldestInChiefQueue(ctx context.Context) (*entity.PermitRequest, error) {
	if m.oldestChiefFunc != nil {
		return m.oldestChiefFunc(ctx)
	}
	return nil, nil
}

func (m *mockRequestRepo) ListPendingForRole(ctx context.Context, role entity.Role, limit, offset int) ([]*entity.PermitRequest, error) {
	if m.listPendingFunc != nil {
		return m.listPendingFunc(ctx, role, limit, offset)
	}
	return nil, nil
}

func (m *mockRequestRepo) ItemsByRequest(ctx context.Context, requestID int64) ([]entity.LineItem, error) {
	if m.itemsByRequestFunc != nil {
		return m.itemsByRequestFunc(ctx, requestID)
	}
	return nil, nil
}

type mockPermitRepo struct {
	createFunc       func(ctx context.Context, permit *entity.Permit) error
	getByRequestFunc func(ctx context.Context, requestID int64) (*entity.Permit, error)
	maxSeqFunc       func(ctx context.Context, year int) (int, error)
	listByYearFunc   func(ctx context.Context, year int) ([]*entity.Permit, error)
	updatePathFunc   func(ctx context.Context, id int64, path string) error
}

func (m *mockPermitRepo) Create(ctx context.Context, permit *entity.Permit) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, permit)
	}
	permit.ID = 1
	return nil
}

func (m *mockPermitRepo) GetByRequestID(ctx context.Context, requestID int64) (*entity.Permit, error) {
	if m.getByRequestFunc != nil {
		return m.getByRequestFunc(ctx, requestID)
	}
	return nil, nil
}

func (m *mockPermitRepo) MaxSequenceForYear(ctx context.Context, year int) (int, error) {
	if m.maxSeqFunc != nil {
		return m.maxSeqFunc(ctx, year)
	}
	return 0, nil
}

func (m *mockPermitRepo) ListByYear(ctx context.Context, year int) ([]*entity.Permit, error) {
	if m.listByYearFunc != nil {
		return m.listByYearFunc(ctx, year)
	}
	return nil, nil
}

func (m *mockPermitRepo) UpdateDocumentPath(ctx context.Context, id int64, path string) error {
	if m.updatePathFunc != nil {
		return m.updatePathFunc(ctx, id, path)
	}
	return nil
}

type mockConfigRepo struct {
	createFunc      func(ctx context.Context, cfg *entity.ComplianceConfiguration) error
	getByIDFunc     func(ctx context.Context, id int64) (*entity.ComplianceConfiguration, error)
	getByEntityFunc func(ctx context.Context, entityID int64) (*entity.ComplianceConfiguration, error)
}

func (m *mockConfigRepo) Create(ctx context.Context, cfg *entity.ComplianceConfiguration) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, cfg)
	}
	cfg.ID = 1
	return nil
}

func (m *mockConfigRepo) GetByID(ctx context.Context, id int64) (*entity.ComplianceConfiguration, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.ComplianceConfiguration{ID: id, EntityID: 9}, nil
}

func (m *mockConfigRepo) GetByEntity(ctx context.Context, entityID int64) (*entity.ComplianceConfiguration, error) {
	if m.getByEntityFunc != nil {
		return m.getByEntityFunc(ctx, entityID)
	}
	return nil, nil
}

type mockPeriodRepo struct {
	createBatchFunc func(ctx context.Context, periods []*entity.CompliancePeriod) error
	getByIDFunc     func(ctx context.Context, id int64) (*entity.CompliancePeriod, error)
	listByCfgFunc   func(ctx context.Context, configurationID int64) ([]*entity.CompliancePeriod, error)
	updateFunc      func(ctx context.Context, period *entity.CompliancePeriod) error
}

func (m *mockPeriodRepo) CreateBatch(ctx context.Context, periods []*entity.CompliancePeriod) error {
	if m.createBatchFunc != nil {
		return m.createBatchFunc(ctx, periods)
	}
	for i, p := range periods {
		p.ID = int64(i + 1)
	}
	return nil
}

func (m *mockPeriodRepo) GetByID(ctx context.Context, id int64) (*entity.CompliancePeriod, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPeriodRepo) ListByConfiguration(ctx context.Context, configurationID int64) ([]*entity.CompliancePeriod, error) {
	if m.listByCfgFunc != nil {
		return m.listByCfgFunc(ctx, configurationID)
	}
	return nil, nil
}

func (m *mockPeriodRepo) Update(ctx context.Context, period *entity.CompliancePeriod) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, period)
	}
	return nil
}

type mockSubmissionRepo struct {
	createFunc      func(ctx context.Context, sub *entity.ComplianceSubmission) error
	getByIDFunc     func(ctx context.Context, id int64) (*entity.ComplianceSubmission, error)
	getByPeriodFunc func(ctx context.Context, periodID int64) (*entity.ComplianceSubmission, error)
	updateFunc      func(ctx context.Context, sub *entity.ComplianceSubmission) error
}

func (m *mockSubmissionRepo) Create(ctx context.Context, sub *entity.ComplianceSubmission) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, sub)
	}
	sub.ID = 1
	return nil
}

func (m *mockSubmissionRepo) GetByID(ctx context.Context, id int64) (*entity.ComplianceSubmission, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSubmissionRepo) GetByPeriod(ctx context.Context, periodID int64) (*entity.ComplianceSubmission, error) {
	if m.getByPeriodFunc != nil {
		return m.getByPeriodFunc(ctx, periodID)
	}
	return nil, nil
}

func (m *mockSubmissionRepo) Update(ctx context.Context, sub *entity.ComplianceSubmission) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, sub)
	}
	return nil
}

type mockAssignmentRepo struct {
	assignFunc func(ctx context.Context, a *entity.TechnicianAssignment) error
	countFunc  func(ctx context.Context, submissionID int64) (int, error)
	listFunc   func(ctx context.Context, submissionID int64) ([]*entity.TechnicianAssignment, error)
}

func (m *mockAssignmentRepo) Assign(ctx context.Context, a *entity.TechnicianAssignment) error {
	if m.assignFunc != nil {
		return m.assignFunc(ctx, a)
	}
	a.ID = 1
	return nil
}

func (m *mockAssignmentRepo) CountBySubmission(ctx context.Context, submissionID int64) (int, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, submissionID)
	}
	return 0, nil
}

func (m *mockAssignmentRepo) ListBySubmission(ctx context.Context, submissionID int64) ([]*entity.TechnicianAssignment, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, submissionID)
	}
	return nil, nil
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry

	createFunc func(ctx context.Context, e *entity.AuditEntry) error
	listFunc   func(ctx context.Context, kind entity.EntityKind, entityID int64, limit, offset int) ([]*entity.AuditEntry, error)
}

func (m *mockAuditRepo) Create(ctx context.Context, e *entity.AuditEntry) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) ListForEntity(ctx context.Context, kind entity.EntityKind, entityID int64, limit, offset int) ([]*entity.AuditEntry, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, kind, entityID, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.AuditEntry
	for _, e := range m.entries {
		if e.EntityKind == kind && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockDocStore struct {
	storeFunc func(ctx context.Context, content []byte, suggestedName string) (string, error)
	readFunc  func(ctx context.Context, path string) ([]byte, error)
}

func (m *mockDocStore) Store(ctx context.Context, content []byte, suggestedName string) (string, error) {
	if m.storeFunc != nil {
		return m.storeFunc(ctx, content, suggestedName)
	}
	return "docs/" + suggestedName, nil
}

func (m *mockDocStore) Read(ctx context.Context, path string) ([]byte, error) {
	if m.readFunc != nil {
		return m.readFunc(ctx, path)
	}
	return nil, nil
}

func (m *mockDocStore) Exists(ctx context.Context, path string) bool {
	return false
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

// memoryRequestRepo is a small in-memory request store for scenarios that
// need real queue semantics instead of canned responses.
type memoryRequestRepo struct {
	mu       sync.Mutex
	nextID   int64
	requests map[int64]*entity.PermitRequest
	items    map[int64][]entity.LineItem
}

func newMemoryRequestRepo() *memoryRequestRepo {
	return &memoryRequestRepo{
		nextID:   1,
		requests: make(map[int64]*entity.PermitRequest),
		items:    make(map[int64][]entity.LineItem),
	}
}

func (r *memoryRequestRepo) Create(ctx context.Context, req *entity.PermitRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.ID = r.nextID
	r.nextID++
	clone := *req
	r.requests[req.ID] = &clone
	r.items[req.ID] = append([]entity.LineItem{}, req.Items...)
	return nil
}

func (r *memoryRequestRepo) GetByID(ctx context.Context, id int64) (*entity.PermitRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	clone := *req
	return &clone, nil
}

func (r *memoryRequestRepo) Update(ctx context.Context, req *entity.PermitRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *req
	r.requests[req.ID] = &clone
	return nil
}

func (r *memoryRequestRepo) OldestInTechnicianQueue(ctx context.Context) (*entity.PermitRequest, error) {
	return r.oldest(func(req *entity.PermitRequest) bool {
		return req.Status == "PENDING" && !req.ValidatedByTechnician
	})
}

func (r *memoryRequestRepo) OldestInChiefQueue(ctx context.Context) (*entity.PermitRequest, error) {
	return r.oldest(func(req *entity.PermitRequest) bool {
		return req.Status == "PENDING" && req.ValidatedByTechnician && !req.ValidatedByChief
	})
}

func (r *memoryRequestRepo) oldest(match func(*entity.PermitRequest) bool) (*entity.PermitRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []*entity.PermitRequest
	for _, req := range r.requests {
		if match(req) {
			candidates = append(candidates, req)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	clone := *candidates[0]
	return &clone, nil
}

func (r *memoryRequestRepo) ListPendingForRole(ctx context.Context, role entity.Role, limit, offset int) ([]*entity.PermitRequest, error) {
	return nil, nil
}

func (r *memoryRequestRepo) ItemsByRequest(ctx context.Context, requestID int64) ([]entity.LineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.LineItem{}, r.items[requestID]...), nil
}

func asRole(role entity.Role) context.Context {
	return port.WithIdentity(context.Background(), port.Identity{
		UserID: "u-" + string(role),
		Name:   string(role) + " user",
		Role:   role,
	})
}
