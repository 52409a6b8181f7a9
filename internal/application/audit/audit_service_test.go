package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsla/backend/internal/domain/audit"
	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
)

// fakeAuditRepo is an in-memory audit.Repository
type fakeAuditRepo struct {
	mu      sync.Mutex
	records []*audit.AuditRecord
}

func (r *fakeAuditRepo) Create(ctx context.Context, rec *audit.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *rec
	r.records = append(r.records, &clone)
	return nil
}

func (r *fakeAuditRepo) Save(ctx context.Context, rec *audit.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.records {
		if existing.ID == rec.ID {
			if existing.Version != rec.Version-1 {
				return shared.ErrConcurrentModification.WithDetails("stale audit record")
			}
			clone := *rec
			r.records[i] = &clone
			return nil
		}
	}
	return shared.ErrNotFound.WithDetails("audit %s", rec.ID)
}

func (r *fakeAuditRepo) FindByID(ctx context.Context, id uuid.UUID) (*audit.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound.WithDetails("audit %s", id)
}

func (r *fakeAuditRepo) FindCurrentByGroup(ctx context.Context, groupID uuid.UUID) (*audit.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *audit.AuditRecord
	for _, rec := range r.records {
		if rec.GroupID != groupID {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

// fakeGroupRepo is an in-memory group.Repository
type fakeGroupRepo struct {
	mu     sync.Mutex
	groups map[uuid.UUID]*group.Group
}

func (r *fakeGroupRepo) Create(ctx context.Context, g *group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = g
	return nil
}

func (r *fakeGroupRepo) FindByID(ctx context.Context, id uuid.UUID) (*group.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, shared.ErrNotFound.WithDetails("group %s", id)
	}
	clone := *g
	return &clone, nil
}

func (r *fakeGroupRepo) FindAll(ctx context.Context, filter shared.Filter) ([]group.Group, int64, error) {
	return nil, 0, nil
}

func (r *fakeGroupRepo) Save(ctx context.Context, g *group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = g
	return nil
}

// fakeReconciler stands in for the ledger's conservation check
type fakeReconciler struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (r *fakeReconciler) Reconcile(ctx context.Context, groupID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func newFixture(t *testing.T) (*AuditService, *group.Group, *capturingPublisher) {
	t.Helper()
	g, err := group.NewGroup("Namugongo Savings", nil, valueobject.ZeroUGX())
	require.NoError(t, err)
	g.ClearDomainEvents()

	groups := &fakeGroupRepo{groups: map[uuid.UUID]*group.Group{g.ID: g}}
	publisher := &capturingPublisher{}

	svc := NewAuditService(&fakeAuditRepo{}, groups, nil, nil, Config{})
	svc.SetEventPublisher(publisher)
	return svc, g, publisher
}

func TestStart_OpensAuditWithDefaultChecklist(t *testing.T) {
	svc, g, _ := newFixture(t)

	resp, err := svc.Start(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, string(audit.StateNotStarted), resp.State)
	assert.Equal(t, audit.DefaultChecklist, resp.Checklist)
	assert.Equal(t, "verify_cashbook", resp.NextStep)
	assert.Empty(t, resp.CompletedSteps)
}

func TestStart_RejectsSecondOpenAudit(t *testing.T) {
	svc, g, _ := newFixture(t)

	_, err := svc.Start(context.Background(), g.ID)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), g.ID)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrInvalidState.Code, domainErr.Code)
}

func TestCompleteStep_EnforcesChecklistOrder(t *testing.T) {
	svc, g, _ := newFixture(t)
	_, err := svc.Start(context.Background(), g.ID)
	require.NoError(t, err)

	// Skipping ahead is rejected
	_, err = svc.CompleteStep(context.Background(), g.ID, CompleteStepRequest{Step: "reconcile_ledger"})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrAuditStepOutOfOrder.Code, domainErr.Code)

	resp, err := svc.CompleteStep(context.Background(), g.ID, CompleteStepRequest{Step: "verify_cashbook"})
	require.NoError(t, err)
	assert.Equal(t, string(audit.StateInProgress), resp.State)
	assert.Equal(t, "verify_passbooks", resp.NextStep)

	// Repeating a completed step is rejected
	_, err = svc.CompleteStep(context.Background(), g.ID, CompleteStepRequest{Step: "verify_cashbook"})
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrAuditStepOutOfOrder.Code, domainErr.Code)
}

func TestCompleteStep_FinalStepClosesAuditAndPublishes(t *testing.T) {
	svc, g, publisher := newFixture(t)
	_, err := svc.Start(context.Background(), g.ID)
	require.NoError(t, err)

	var resp *AuditResponse
	for _, step := range audit.DefaultChecklist {
		resp, err = svc.CompleteStep(context.Background(), g.ID, CompleteStepRequest{Step: step})
		require.NoError(t, err)
	}

	assert.Equal(t, string(audit.StateCompleted), resp.State)
	assert.Empty(t, resp.NextStep)
	assert.NotNil(t, resp.CompletedAt)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, audit.EventTypeAuditCompleted, publisher.events[0].EventType())

	// A completed audit accepts no further steps
	_, err = svc.CompleteStep(context.Background(), g.ID, CompleteStepRequest{Step: "verify_cashbook"})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrInvalidState.Code, domainErr.Code)
}

func TestCompleteStep_ReconcileLedgerRefusedOnDivergence(t *testing.T) {
	g, err := group.NewGroup("Namugongo Savings", nil, valueobject.ZeroUGX())
	require.NoError(t, err)
	g.ClearDomainEvents()
	groups := &fakeGroupRepo{groups: map[uuid.UUID]*group.Group{g.ID: g}}
	reconciler := &fakeReconciler{
		err: shared.ErrInvalidState.WithDetails("stored group total diverges"),
	}
	svc := NewAuditService(&fakeAuditRepo{}, groups, reconciler, nil, Config{})

	_, err = svc.Start(context.Background(), g.ID)
	require.NoError(t, err)
	for _, step := range []string{audit.StepVerifyCashbook, audit.StepVerifyPassbooks} {
		_, err = svc.CompleteStep(context.Background(), g.ID, CompleteStepRequest{Step: step})
		require.NoError(t, err)
	}
	// Earlier steps never touch the ledger
	assert.Equal(t, 0, reconciler.calls)

	_, err = svc.CompleteStep(context.Background(), g.ID, CompleteStepRequest{Step: audit.StepReconcileLedger})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrInvalidState.Code, domainErr.Code)
	assert.Equal(t, 1, reconciler.calls)

	// The refused step stays pending
	resp, err := svc.GetCurrent(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, audit.StepReconcileLedger, resp.NextStep)
	assert.Equal(t, string(audit.StateInProgress), resp.State)

	// Once the ledger reconciles, the step completes
	reconciler.err = nil
	resp, err = svc.CompleteStep(context.Background(), g.ID, CompleteStepRequest{Step: audit.StepReconcileLedger})
	require.NoError(t, err)
	assert.Equal(t, audit.StepReviewLoanBook, resp.NextStep)
	assert.Equal(t, 2, reconciler.calls)
}

func TestStart_AllowedAgainAfterCompletion(t *testing.T) {
	svc, g, _ := newFixture(t)
	_, err := svc.Start(context.Background(), g.ID)
	require.NoError(t, err)
	for _, step := range audit.DefaultChecklist {
		_, err = svc.CompleteStep(context.Background(), g.ID, CompleteStepRequest{Step: step})
		require.NoError(t, err)
	}

	time.Sleep(time.Millisecond)
	resp, err := svc.Start(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, string(audit.StateNotStarted), resp.State)
}

func TestGetCurrent_NeverAudited(t *testing.T) {
	svc, g, _ := newFixture(t)

	_, err := svc.GetCurrent(context.Background(), g.ID)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrNotFound.Code, domainErr.Code)
}

func TestCompleteStep_NoAudit(t *testing.T) {
	svc, g, _ := newFixture(t)

	_, err := svc.CompleteStep(context.Background(), g.ID, CompleteStepRequest{Step: "verify_cashbook"})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrNotFound.Code, domainErr.Code)
}
