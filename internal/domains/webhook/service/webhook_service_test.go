package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ordermodel "checkout-core/internal/domains/order/model"
	"checkout-core/internal/domains/webhook/model"
	"checkout-core/internal/domains/webhook/repository"
	"checkout-core/internal/shared/apperror"
)

// mockRepository is a testify mock of repository.Repository. pool is
// never dereferenced by webhookOps itself (it only threads it through
// as a Querier argument a real repository would use), so these tests
// run with a nil *pgxpool.Pool the same way the sibling test suites
// pass a nil DB handle into services under mocked repositories.
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, q repository.Querier, log *model.WebhookLog) error {
	args := m.Called(ctx, q, log)
	return args.Error(0)
}

func (m *mockRepository) GetByIdempotencyKey(ctx context.Context, q repository.Querier, key string) (*model.WebhookLog, error) {
	args := m.Called(ctx, q, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookLog), args.Error(1)
}

func (m *mockRepository) MarkProcessed(ctx context.Context, q repository.Querier, id int64) error {
	args := m.Called(ctx, q, id)
	return args.Error(0)
}

func (m *mockRepository) ListPendingOrder(ctx context.Context, q repository.Querier, limit int) ([]*model.WebhookLog, error) {
	args := m.Called(ctx, q, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WebhookLog), args.Error(1)
}

type mockOrderOps struct {
	mock.Mock
}

func (m *mockOrderOps) CreateOrderFromHold(ctx context.Context, holdID int64) (*ordermodel.Order, error) {
	args := m.Called(ctx, holdID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordermodel.Order), args.Error(1)
}

func (m *mockOrderOps) MarkPaid(ctx context.Context, orderID int64) (*ordermodel.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordermodel.Order), args.Error(1)
}

func (m *mockOrderOps) Cancel(ctx context.Context, orderID int64) (*ordermodel.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordermodel.Order), args.Error(1)
}

func (m *mockOrderOps) Get(ctx context.Context, orderID int64) (*ordermodel.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordermodel.Order), args.Error(1)
}

func newTestWebhookOps(repo *mockRepository, order *mockOrderOps) *webhookOps {
	return &webhookOps{pool: nil, repo: repo, order: order}
}

func samplePayload(idemKey string, orderID int64, status string) []byte {
	b, _ := json.Marshal(inboundPayload{
		IdempotencyKey: idemKey,
		OrderID:        orderID,
		PaymentStatus:  status,
	})
	return b
}

func TestHandleMissingFieldRejected(t *testing.T) {
	repo := new(mockRepository)
	order := new(mockOrderOps)
	s := newTestWebhookOps(repo, order)

	_, err := s.Handle(context.Background(), []byte(`{"order_id":1,"payment_status":"success"}`))
	require.Error(t, err)
	assert.Equal(t, apperror.KindMissingField, apperror.As(err).Kind)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleUnknownPaymentStatusRejected(t *testing.T) {
	repo := new(mockRepository)
	order := new(mockOrderOps)
	s := newTestWebhookOps(repo, order)

	_, err := s.Handle(context.Background(), samplePayload("evt-1", 1, "refunded"))
	require.Error(t, err)
	assert.Equal(t, apperror.KindInvalidPayment, apperror.As(err).Kind)
}

func TestHandleAlreadyProcessedShortCircuitsBeforeCreate(t *testing.T) {
	repo := new(mockRepository)
	order := new(mockOrderOps)
	s := newTestWebhookOps(repo, order)

	repo.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "evt-1").
		Return(&model.WebhookLog{ID: 5, IdempotencyKey: "evt-1"}, nil)

	res, err := s.Handle(context.Background(), samplePayload("evt-1", 1, "success"))
	require.NoError(t, err)
	assert.Equal(t, "already_processed", res.Status)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	order.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestHandleOrderNotYetCreatedRecordsPending(t *testing.T) {
	repo := new(mockRepository)
	order := new(mockOrderOps)
	s := newTestWebhookOps(repo, order)

	repo.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "evt-2").
		Return(nil, repository.ErrNotFound)
	order.On("Get", mock.Anything, int64(42)).
		Return(nil, apperror.New(apperror.KindNotFound, "order not found"))
	repo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(l *model.WebhookLog) bool {
		return l.Status == model.StatusPendingOrder
	})).Return(nil)

	res, err := s.Handle(context.Background(), samplePayload("evt-2", 42, "success"))
	require.NoError(t, err)
	assert.Equal(t, "pending_order", res.Status)
	order.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}

func TestHandleOrderLookupInternalErrorPropagates(t *testing.T) {
	repo := new(mockRepository)
	order := new(mockOrderOps)
	s := newTestWebhookOps(repo, order)

	repo.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "evt-lookup-fail").
		Return(nil, repository.ErrNotFound)
	order.On("Get", mock.Anything, int64(43)).
		Return(nil, apperror.Wrap(apperror.KindInternal, "load order", assert.AnError))

	_, err := s.Handle(context.Background(), samplePayload("evt-lookup-fail", 43, "success"))
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.As(err).Kind)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleSuccessSettlesOrderPaid(t *testing.T) {
	repo := new(mockRepository)
	order := new(mockOrderOps)
	s := newTestWebhookOps(repo, order)

	existingOrder := &ordermodel.Order{ID: 7, Status: ordermodel.StatusPendingPayment}

	repo.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "evt-3").
		Return(nil, repository.ErrNotFound)
	order.On("Get", mock.Anything, int64(7)).Return(existingOrder, nil)
	order.On("MarkPaid", mock.Anything, int64(7)).Return(existingOrder, nil)
	repo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(l *model.WebhookLog) bool {
		return l.Status == model.StatusProcessed
	})).Return(nil)

	res, err := s.Handle(context.Background(), samplePayload("evt-3", 7, "success"))
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	require.NotNil(t, res.OrderID)
	assert.Equal(t, int64(7), *res.OrderID)
	order.AssertCalled(t, "MarkPaid", mock.Anything, int64(7))
	order.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleSettlementFailureLeavesNoLogRowForRetry(t *testing.T) {
	repo := new(mockRepository)
	order := new(mockOrderOps)
	s := newTestWebhookOps(repo, order)

	existingOrder := &ordermodel.Order{ID: 77, Status: ordermodel.StatusPendingPayment}

	repo.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "evt-fail").
		Return(nil, repository.ErrNotFound)
	order.On("Get", mock.Anything, int64(77)).Return(existingOrder, nil)
	order.On("MarkPaid", mock.Anything, int64(77)).
		Return(nil, apperror.New(apperror.KindInternal, "db unavailable"))

	_, err := s.Handle(context.Background(), samplePayload("evt-fail", 77, "success"))
	require.Error(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleFailedSettlesOrderCancelled(t *testing.T) {
	repo := new(mockRepository)
	order := new(mockOrderOps)
	s := newTestWebhookOps(repo, order)

	existingOrder := &ordermodel.Order{ID: 8, Status: ordermodel.StatusPendingPayment}

	repo.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "evt-4").
		Return(nil, repository.ErrNotFound)
	order.On("Get", mock.Anything, int64(8)).Return(existingOrder, nil)
	order.On("Cancel", mock.Anything, int64(8)).Return(existingOrder, nil)
	repo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*model.WebhookLog")).
		Return(nil)

	res, err := s.Handle(context.Background(), samplePayload("evt-4", 8, "failed"))
	require.NoError(t, err)
	assert.Equal(t, "failed", res.Status)
	order.AssertCalled(t, "Cancel", mock.Anything, int64(8))
	order.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}

func TestHandleCreateDuplicateRaceReportsAlreadyProcessed(t *testing.T) {
	repo := new(mockRepository)
	order := new(mockOrderOps)
	s := newTestWebhookOps(repo, order)

	existingOrder := &ordermodel.Order{ID: 9, Status: ordermodel.StatusPendingPayment}

	repo.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "evt-5").
		Return(nil, repository.ErrNotFound)
	order.On("Get", mock.Anything, int64(9)).Return(existingOrder, nil)
	order.On("MarkPaid", mock.Anything, int64(9)).Return(existingOrder, nil)
	repo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*model.WebhookLog")).
		Return(repository.ErrDuplicate)

	res, err := s.Handle(context.Background(), samplePayload("evt-5", 9, "success"))
	require.NoError(t, err)
	assert.Equal(t, "already_processed", res.Status)
	// settlement already ran before the insert raced; MarkPaid is
	// idempotent on order status so the concurrent winner's write holds.
	order.AssertCalled(t, "MarkPaid", mock.Anything, int64(9))
}

func TestReconcilePendingSettlesRecoverableLogsAndSkipsStillMissing(t *testing.T) {
	repo := new(mockRepository)
	order := new(mockOrderOps)
	s := newTestWebhookOps(repo, order)

	recoveredOrder := &ordermodel.Order{ID: 11, Status: ordermodel.StatusPendingPayment}
	logs := []*model.WebhookLog{
		{ID: 1, OrderID: 11, Outcome: model.OutcomeSuccess},
		{ID: 2, OrderID: 12, Outcome: model.OutcomeSuccess},
	}

	repo.On("ListPendingOrder", mock.Anything, mock.Anything, 50).Return(logs, nil)
	order.On("Get", mock.Anything, int64(11)).Return(recoveredOrder, nil)
	order.On("Get", mock.Anything, int64(12)).Return(nil, apperror.New(apperror.KindNotFound, "order not found"))
	order.On("MarkPaid", mock.Anything, int64(11)).Return(recoveredOrder, nil)
	repo.On("MarkProcessed", mock.Anything, mock.Anything, int64(1)).Return(nil)

	settled, err := s.ReconcilePending(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
	order.AssertNotCalled(t, "MarkPaid", mock.Anything, int64(12))
}
