package sync

import (
	"context"
	"errors"
	"testing"

	"invoicing-backend/models"
	"invoicing-backend/payments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReconcilerWalksHistoryAndAdvancesBookmark(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db)
	seedProfile(t, db, account.Id)

	// Newest first: the cursor always points at the oldest charge seen so far.
	proc := &mockProcessor{}
	proc.On("ListCharges", mock.Anything, "", int64(2)).
		Return(payments.ChargePage{
			Charges: []payments.Charge{paymentsCharge("ch_3", 300), paymentsCharge("ch_2", 200)},
			HasMore: true,
		}, nil)
	proc.On("ListCharges", mock.Anything, "ch_2", int64(2)).
		Return(payments.ChargePage{
			Charges: []payments.Charge{paymentsCharge("ch_1", 100)},
			HasMore: false,
		}, nil)

	engine := NewEngine(db, proc, nil, nil, nil)
	reconciler := NewReconciler(db, engine, proc, nil)

	report, err := reconciler.Run(context.Background(), account.Id, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 2, report.Pages)
	assert.True(t, report.Complete)
	assert.Equal(t, "ch_1", report.Cursor)

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Where("account_id = ?", account.Id).Count(&count).Error)
	assert.EqualValues(t, 3, count)

	var mark models.SyncBookmark
	require.NoError(t, db.First(&mark, "account_id = ?", account.Id).Error)
	assert.Equal(t, "ch_1", mark.OldestChargeID)
	proc.AssertExpectations(t)
}

func TestReconcilerResumesAfterInterruption(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db)
	seedProfile(t, db, account.Id)

	proc := &mockProcessor{}
	proc.On("ListCharges", mock.Anything, "", int64(2)).
		Return(payments.ChargePage{
			Charges: []payments.Charge{paymentsCharge("ch_3", 300), paymentsCharge("ch_2", 200)},
			HasMore: true,
		}, nil)
	// The second page fails on the first run.
	proc.On("ListCharges", mock.Anything, "ch_2", int64(2)).
		Return(payments.ChargePage{}, errors.New("processor unavailable")).Once()
	proc.On("ListCharges", mock.Anything, "ch_2", int64(2)).
		Return(payments.ChargePage{
			Charges: []payments.Charge{paymentsCharge("ch_1", 100)},
			HasMore: false,
		}, nil)

	engine := NewEngine(db, proc, nil, nil, nil)
	reconciler := NewReconciler(db, engine, proc, nil)

	report, err := reconciler.Run(context.Background(), account.Id, 10, 2)
	require.Error(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, "ch_2", report.Cursor)

	// The retry resumes from the persisted bookmark. The first page is not
	// refetched and nothing is double-booked.
	report, err = reconciler.Run(context.Background(), account.Id, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.True(t, report.Complete)

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Where("account_id = ?", account.Id).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestReconcilerStopsAtCreationLimit(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db)
	seedProfile(t, db, account.Id)

	proc := &mockProcessor{}
	proc.On("ListCharges", mock.Anything, "", int64(2)).
		Return(payments.ChargePage{
			Charges: []payments.Charge{paymentsCharge("ch_3", 300), paymentsCharge("ch_2", 200)},
			HasMore: true,
		}, nil)

	engine := NewEngine(db, proc, nil, nil, nil)
	reconciler := NewReconciler(db, engine, proc, nil)

	report, err := reconciler.Run(context.Background(), account.Id, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.False(t, report.Complete)
	// ListCharges was called exactly once.
	proc.AssertNumberOfCalls(t, "ListCharges", 1)
}

func TestReconcilerDerivesCursorFromBookedCharges(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db)
	seedProfile(t, db, account.Id)

	// A pre-bookmark deployment left booked invoices but no bookmark row.
	engine := NewEngine(db, nil, nil, nil, nil)
	_, err := engine.Apply(context.Background(), account.Id, chargeEvent("ch_5", 500))
	require.NoError(t, err)

	proc := &mockProcessor{}
	proc.On("ListCharges", mock.Anything, "ch_5", int64(25)).
		Return(payments.ChargePage{
			Charges: []payments.Charge{paymentsCharge("ch_4", 400)},
			HasMore: false,
		}, nil)

	reconciler := NewReconciler(db, engine, proc, nil)
	report, err := reconciler.Run(context.Background(), account.Id, 10, 25)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	proc.AssertExpectations(t)
}

func TestReconcilerSurfacesMissingProfile(t *testing.T) {
	db := newTestDB(t)
	account := seedAccount(t, db)

	proc := &mockProcessor{}
	proc.On("ListCharges", mock.Anything, "", int64(25)).
		Return(payments.ChargePage{
			Charges: []payments.Charge{paymentsCharge("ch_1", 100)},
			HasMore: false,
		}, nil)

	engine := NewEngine(db, proc, nil, nil, nil)
	reconciler := NewReconciler(db, engine, proc, nil)

	_, err := reconciler.Run(context.Background(), account.Id, 10, 25)
	assert.ErrorIs(t, err, ErrNoOriginProfile)

	// The failed page did not advance the bookmark.
	var count int64
	require.NoError(t, db.Model(&models.SyncBookmark{}).Count(&count).Error)
	assert.Zero(t, count)
}
