package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	billingrepository "github.com/lettercast/lettercast/internal/billing/repository"
	subscriptiondomain "github.com/lettercast/lettercast/internal/subscription/domain"
	subscriptionrepository "github.com/lettercast/lettercast/internal/subscription/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeGateway struct {
	detail *billingdomain.SubscriptionDetail
	err    error
	calls  int
}

func (f *fakeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*billingdomain.SubscriptionDetail, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

func (f *fakeGateway) EnsureCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeGateway) EnsurePrice(ctx context.Context, spec billingdomain.PriceSpec) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, spec billingdomain.CheckoutSpec) (*billingdomain.CheckoutSession, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "", errors.New("not implemented")
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&subscriptiondomain.Record{},
		&billingdomain.EventRecord{},
	))
	return db
}

func newTestEngine(t *testing.T, db *gorm.DB, gw billingdomain.Gateway) *Engine {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewEngine(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Records: subscriptionrepository.Provide(),
		Events:  billingrepository.Provide(),
		Gateway: gw,
	})
}

func activeDetail(subscriptionID string, periodEnd time.Time) *billingdomain.SubscriptionDetail {
	start := periodEnd.AddDate(0, -1, 0)
	return &billingdomain.SubscriptionDetail{
		SubscriptionID:     subscriptionID,
		CustomerID:         "cus_123",
		Status:             "active",
		PriceID:            "price_123",
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &periodEnd,
	}
}

func checkoutEvent(id string, created time.Time, userID, publicationID snowflake.ID, subscriptionID string) *billingdomain.CheckoutCompleted {
	return &billingdomain.CheckoutCompleted{
		Envelope:       billingdomain.Envelope{ID: id, Created: created},
		SessionID:      "cs_" + id,
		SubscriptionID: subscriptionID,
		Metadata: billingdomain.Correlation{
			UserID:        userID,
			PublicationID: publicationID,
		},
	}
}

func updateEvent(id string, created time.Time, state billingdomain.SubscriptionState) *billingdomain.SubscriptionChange {
	return &billingdomain.SubscriptionChange{
		Envelope:     billingdomain.Envelope{ID: id, Created: created},
		Change:       billingdomain.EventSubscriptionUpdated,
		Subscription: state,
	}
}

func findRecord(t *testing.T, db *gorm.DB, userID, publicationID snowflake.ID) *subscriptiondomain.Record {
	t.Helper()
	record, err := subscriptionrepository.Provide().FindByUserAndPublication(context.Background(), db, userID, publicationID)
	require.NoError(t, err)
	return record
}

func TestReconcileCheckoutCreatesPaidRecord(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{detail: activeDetail("sub_1", time.Now().UTC().AddDate(0, 1, 0))}
	engine := newTestEngine(t, db, gw)

	node, _ := snowflake.NewNode(2)
	userID, publicationID := node.Generate(), node.Generate()

	outcome, err := engine.Reconcile(context.Background(), checkoutEvent("evt_1", time.Now().UTC(), userID, publicationID, "sub_1"), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultApplied, outcome.Result)

	record := findRecord(t, db, userID, publicationID)
	require.NotNil(t, record)
	assert.Equal(t, subscriptiondomain.TierPaid, record.Tier)
	assert.Equal(t, subscriptiondomain.StatusActive, record.Status)
	require.NotNil(t, record.BillingSubscriptionID)
	assert.Equal(t, "sub_1", *record.BillingSubscriptionID)
	require.NotNil(t, record.BillingCustomerID)
	assert.Equal(t, "cus_123", *record.BillingCustomerID)
	assert.NotNil(t, record.CurrentPeriodEnd)
}

func TestReconcileRedeliveredEventShortCircuits(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{detail: activeDetail("sub_1", time.Now().UTC().AddDate(0, 1, 0))}
	engine := newTestEngine(t, db, gw)

	node, _ := snowflake.NewNode(2)
	userID, publicationID := node.Generate(), node.Generate()
	event := checkoutEvent("evt_1", time.Now().UTC(), userID, publicationID, "sub_1")

	outcome, err := engine.Reconcile(context.Background(), event, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultApplied, outcome.Result)

	outcome, err = engine.Reconcile(context.Background(), event, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultIgnored, outcome.Result)
	assert.Equal(t, "already processed", outcome.Reason)
	assert.Equal(t, 1, gw.calls)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM subscription_records`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconcileDistinctEventsSameContentConverge(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, nil)

	node, _ := snowflake.NewNode(2)
	userID, publicationID := node.Generate(), node.Generate()
	created := time.Now().UTC().Truncate(time.Second)
	state := billingdomain.SubscriptionState{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_123",
		Status:         "active",
		PriceID:        "price_123",
		Metadata: billingdomain.Correlation{
			UserID:        userID,
			PublicationID: publicationID,
		},
	}

	outcome, err := engine.Reconcile(context.Background(), updateEvent("evt_a", created, state), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultApplied, outcome.Result)

	// Same provider state under a fresh event id must land on the same row.
	outcome, err = engine.Reconcile(context.Background(), updateEvent("evt_b", created, state), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultApplied, outcome.Result)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM subscription_records`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)

	record := findRecord(t, db, userID, publicationID)
	require.NotNil(t, record)
	assert.Equal(t, subscriptiondomain.StatusActive, record.Status)
}

func TestReconcileStaleEventSkipped(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, nil)

	node, _ := snowflake.NewNode(2)
	userID, publicationID := node.Generate(), node.Generate()
	base := time.Now().UTC().Truncate(time.Second)

	state := billingdomain.SubscriptionState{
		SubscriptionID: "sub_1",
		Status:         "active",
		Metadata: billingdomain.Correlation{
			UserID:        userID,
			PublicationID: publicationID,
		},
	}
	outcome, err := engine.Reconcile(context.Background(), updateEvent("evt_new", base, state), []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, billingdomain.ResultApplied, outcome.Result)

	// An older event arriving late must not regress the record.
	stale := state
	stale.Status = "past_due"
	outcome, err = engine.Reconcile(context.Background(), updateEvent("evt_old", base.Add(-time.Hour), stale), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultIgnored, outcome.Result)
	assert.Equal(t, "stale event", outcome.Reason)

	record := findRecord(t, db, userID, publicationID)
	require.NotNil(t, record)
	assert.Equal(t, subscriptiondomain.StatusActive, record.Status)
}

func TestReconcileDeletionDowngradesAndRetainsRow(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{detail: activeDetail("sub_1", time.Now().UTC().AddDate(0, 1, 0))}
	engine := newTestEngine(t, db, gw)

	node, _ := snowflake.NewNode(2)
	userID, publicationID := node.Generate(), node.Generate()
	base := time.Now().UTC().Truncate(time.Second)

	_, err := engine.Reconcile(context.Background(), checkoutEvent("evt_1", base, userID, publicationID, "sub_1"), []byte(`{}`))
	require.NoError(t, err)

	outcome, err := engine.Reconcile(context.Background(), &billingdomain.SubscriptionDeleted{
		Envelope:       billingdomain.Envelope{ID: "evt_2", Created: base.Add(time.Minute)},
		SubscriptionID: "sub_1",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultApplied, outcome.Result)

	record := findRecord(t, db, userID, publicationID)
	require.NotNil(t, record)
	assert.Equal(t, subscriptiondomain.TierFree, record.Tier)
	assert.Equal(t, subscriptiondomain.StatusCanceled, record.Status)
	require.NotNil(t, record.BillingSubscriptionID)
	assert.Equal(t, "sub_1", *record.BillingSubscriptionID)
}

func TestReconcileInvoiceFailureThenRecovery(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{detail: activeDetail("sub_1", time.Now().UTC().AddDate(0, 1, 0))}
	engine := newTestEngine(t, db, gw)

	node, _ := snowflake.NewNode(2)
	userID, publicationID := node.Generate(), node.Generate()
	base := time.Now().UTC().Truncate(time.Second)

	_, err := engine.Reconcile(context.Background(), checkoutEvent("evt_1", base, userID, publicationID, "sub_1"), []byte(`{}`))
	require.NoError(t, err)

	outcome, err := engine.Reconcile(context.Background(), &billingdomain.InvoicePaymentFailed{
		Envelope:       billingdomain.Envelope{ID: "evt_2", Created: base.Add(time.Minute)},
		SubscriptionID: "sub_1",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultApplied, outcome.Result)

	record := findRecord(t, db, userID, publicationID)
	require.NotNil(t, record)
	assert.Equal(t, subscriptiondomain.StatusPastDue, record.Status)

	outcome, err = engine.Reconcile(context.Background(), &billingdomain.InvoicePaymentSucceeded{
		Envelope:       billingdomain.Envelope{ID: "evt_3", Created: base.Add(2 * time.Minute)},
		SubscriptionID: "sub_1",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultApplied, outcome.Result)

	record = findRecord(t, db, userID, publicationID)
	require.NotNil(t, record)
	assert.Equal(t, subscriptiondomain.StatusActive, record.Status)
}

func TestReconcileInvoiceSuccessOnActiveRecordIsNoOp(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{detail: activeDetail("sub_1", time.Now().UTC().AddDate(0, 1, 0))}
	engine := newTestEngine(t, db, gw)

	node, _ := snowflake.NewNode(2)
	userID, publicationID := node.Generate(), node.Generate()
	base := time.Now().UTC().Truncate(time.Second)

	_, err := engine.Reconcile(context.Background(), checkoutEvent("evt_1", base, userID, publicationID, "sub_1"), []byte(`{}`))
	require.NoError(t, err)

	outcome, err := engine.Reconcile(context.Background(), &billingdomain.InvoicePaymentSucceeded{
		Envelope:       billingdomain.Envelope{ID: "evt_2", Created: base.Add(time.Minute)},
		SubscriptionID: "sub_1",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultApplied, outcome.Result)

	record := findRecord(t, db, userID, publicationID)
	require.NotNil(t, record)
	assert.Equal(t, subscriptiondomain.StatusActive, record.Status)
}

func TestReconcileUnknownSubscriptionIgnoredWithoutWrites(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, nil)

	base := time.Now().UTC().Truncate(time.Second)
	outcome, err := engine.Reconcile(context.Background(), updateEvent("evt_1", base, billingdomain.SubscriptionState{
		SubscriptionID: "sub_unknown",
		Status:         "active",
	}), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultIgnored, outcome.Result)
	assert.Equal(t, "unknown subscription", outcome.Reason)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM subscription_records`).Scan(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestReconcileIncompleteCheckoutCorrelationIgnored(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{detail: activeDetail("sub_1", time.Now().UTC())}
	engine := newTestEngine(t, db, gw)

	event := &billingdomain.CheckoutCompleted{
		Envelope:       billingdomain.Envelope{ID: "evt_1", Created: time.Now().UTC()},
		SessionID:      "cs_evt_1",
		SubscriptionID: "sub_1",
	}
	outcome, err := engine.Reconcile(context.Background(), event, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultIgnored, outcome.Result)
	assert.Equal(t, "incomplete checkout correlation", outcome.Reason)
	assert.Zero(t, gw.calls)
}

func TestReconcileGatewayFailureErrorsAndRedeliveryRecovers(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{err: errors.New("gateway down")}
	engine := newTestEngine(t, db, gw)

	node, _ := snowflake.NewNode(2)
	userID, publicationID := node.Generate(), node.Generate()
	event := checkoutEvent("evt_1", time.Now().UTC(), userID, publicationID, "sub_1")

	outcome, err := engine.Reconcile(context.Background(), event, []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, billingdomain.ResultErrored, outcome.Result)
	assert.Nil(t, findRecord(t, db, userID, publicationID))

	// The provider redelivers after the gateway recovers; the unprocessed
	// event row must not block the retry.
	gw.err = nil
	gw.detail = activeDetail("sub_1", time.Now().UTC().AddDate(0, 1, 0))
	outcome, err = engine.Reconcile(context.Background(), event, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultApplied, outcome.Result)
	assert.NotNil(t, findRecord(t, db, userID, publicationID))
}

func TestReconcileUnhandledKindAfterDecodeIgnored(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, nil)

	outcome, err := engine.Reconcile(context.Background(), &billingdomain.InvoicePaymentSucceeded{
		Envelope: billingdomain.Envelope{ID: "evt_1", Created: time.Now().UTC()},
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, billingdomain.ResultIgnored, outcome.Result)
	assert.Equal(t, "no subscription reference", outcome.Reason)
}

func TestReconcileFullLifecycle(t *testing.T) {
	db := newTestDB(t)
	periodEnd := time.Now().UTC().AddDate(0, 1, 0).Truncate(time.Second)
	gw := &fakeGateway{detail: activeDetail("sub_1", periodEnd)}
	engine := newTestEngine(t, db, gw)

	node, _ := snowflake.NewNode(2)
	userID, publicationID := node.Generate(), node.Generate()
	base := time.Now().UTC().Truncate(time.Second)
	ctx := context.Background()

	steps := []struct {
		event  billingdomain.Event
		status subscriptiondomain.Status
		tier   subscriptiondomain.Tier
	}{
		{
			event:  checkoutEvent("evt_1", base, userID, publicationID, "sub_1"),
			status: subscriptiondomain.StatusActive,
			tier:   subscriptiondomain.TierPaid,
		},
		{
			event: updateEvent("evt_2", base.Add(time.Minute), billingdomain.SubscriptionState{
				SubscriptionID:    "sub_1",
				Status:            "active",
				CancelAtPeriodEnd: true,
			}),
			status: subscriptiondomain.StatusActive,
			tier:   subscriptiondomain.TierPaid,
		},
		{
			event: &billingdomain.InvoicePaymentFailed{
				Envelope:       billingdomain.Envelope{ID: "evt_3", Created: base.Add(2 * time.Minute)},
				SubscriptionID: "sub_1",
			},
			status: subscriptiondomain.StatusPastDue,
			tier:   subscriptiondomain.TierPaid,
		},
		{
			event: &billingdomain.InvoicePaymentSucceeded{
				Envelope:       billingdomain.Envelope{ID: "evt_4", Created: base.Add(3 * time.Minute)},
				SubscriptionID: "sub_1",
			},
			status: subscriptiondomain.StatusActive,
			tier:   subscriptiondomain.TierPaid,
		},
		{
			event: &billingdomain.SubscriptionDeleted{
				Envelope:       billingdomain.Envelope{ID: "evt_5", Created: base.Add(4 * time.Minute)},
				SubscriptionID: "sub_1",
			},
			status: subscriptiondomain.StatusCanceled,
			tier:   subscriptiondomain.TierFree,
		},
	}

	for _, step := range steps {
		outcome, err := engine.Reconcile(ctx, step.event, []byte(`{}`))
		require.NoError(t, err, "event %s", step.event.EventID())
		require.Equal(t, billingdomain.ResultApplied, outcome.Result, "event %s", step.event.EventID())

		record := findRecord(t, db, userID, publicationID)
		require.NotNil(t, record)
		assert.Equal(t, step.status, record.Status, "event %s", step.event.EventID())
		assert.Equal(t, step.tier, record.Tier, "event %s", step.event.EventID())
	}

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM subscription_records`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}
