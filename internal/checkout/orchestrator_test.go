package checkout

import (
	"context"
	"sync/atomic"
	"testing"

	"velora_back_end/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	status      string
	createErr   error
	retrieveErr error

	created     []createdIntent
	retrieveSeq []string // si non vide, statuts servis dans l'ordre
	retrieved   int
}

type createdIntent struct {
	amount  int64
	orderID string
	email   string
}

func (f *fakeProvider) CreateIntent(_ context.Context, amount int64, orderID, email string) (*Intent, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, createdIntent{amount: amount, orderID: orderID, email: email})
	return &Intent{ID: "pi_abc", ClientSecret: "pi_abc_secret_xyz", Status: "requires_payment_method"}, nil
}

func (f *fakeProvider) RetrieveIntent(context.Context, string) (*Intent, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	status := f.status
	if len(f.retrieveSeq) > 0 {
		if f.retrieved < len(f.retrieveSeq) {
			status = f.retrieveSeq[f.retrieved]
		} else {
			status = f.retrieveSeq[len(f.retrieveSeq)-1]
		}
	}
	f.retrieved++
	return &Intent{ID: "pi_abc", ClientSecret: "pi_abc_secret_xyz", Status: status}, nil
}

func TestOpen_MissingFields_NoIntentCreated(t *testing.T) {
	provider := &fakeProvider{}
	o := NewOrchestrator(provider)

	// Scénario D : amount manquant → erreur terminale, aucun appel processeur.
	_, err := o.Open(context.Background(), Input{OrderID: "123", Email: "a@b.com"}, nil, nil)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"amount"}, vErr.Missing)
	assert.Empty(t, provider.created)
}

func TestOpen_AmountPassedVerbatim(t *testing.T) {
	provider := &fakeProvider{status: StatusSucceeded}
	o := NewOrchestrator(provider)

	// Scénario C : 500000 centimes restent 500000 centimes.
	session, err := o.Open(context.Background(), Input{OrderID: "123", Amount: 500000, Email: "a@b.com"}, nil, nil)

	require.NoError(t, err)
	require.Len(t, provider.created, 1)
	assert.Equal(t, int64(500000), provider.created[0].amount)
	assert.Equal(t, "123", provider.created[0].orderID)
	assert.Equal(t, "a@b.com", provider.created[0].email)
	assert.Equal(t, "pi_abc_secret_xyz", session.Payment.ClientSecret)
	assert.Equal(t, models.PaymentMethodCollected, session.State())
}

func TestConfirm_Succeeded_FiresSuccessOnce(t *testing.T) {
	provider := &fakeProvider{status: StatusSucceeded}
	o := NewOrchestrator(provider)

	var calls int32
	var ref string
	session, err := o.Open(context.Background(), Input{OrderID: "123", Amount: 500000, Email: "a@b.com"},
		func(paymentRef string) {
			atomic.AddInt32(&calls, 1)
			ref = paymentRef
		}, nil)
	require.NoError(t, err)

	outcome, err := o.Confirm(context.Background(), session.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, outcome.Status)
	assert.Equal(t, "pi_abc", outcome.PaymentRef)
	assert.Equal(t, "pi_abc", ref)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, models.PaymentSucceeded, session.State())
}

func TestDuplicateCompletion_SuccessCallbackOnce(t *testing.T) {
	provider := &fakeProvider{status: StatusSucceeded}
	o := NewOrchestrator(provider)

	var calls int32
	_, err := o.Open(context.Background(), Input{OrderID: "123", Amount: 1000, Email: "a@b.com"},
		func(string) { atomic.AddInt32(&calls, 1) }, nil)
	require.NoError(t, err)

	// Message popup livré deux fois : un seul onSuccess, la deuxième
	// livraison trouve la session déjà évincée.
	assert.True(t, o.HandleCompletion("123", "pi_abc"))
	assert.False(t, o.HandleCompletion("123", "pi_abc"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFinalizedSession_EvictedFromRegistry(t *testing.T) {
	provider := &fakeProvider{status: StatusSucceeded}
	o := NewOrchestrator(provider)

	session, err := o.Open(context.Background(), Input{OrderID: "123", Amount: 1000, Email: "a@b.com"}, nil, nil)
	require.NoError(t, err)

	_, ok := o.Session(session.Payment.ID)
	require.True(t, ok)

	_, err = o.Confirm(context.Background(), session.Payment.ID)
	require.NoError(t, err)

	// Terminée = évincée des deux index ; le ledger porte l'idempotence.
	_, ok = o.Session(session.Payment.ID)
	assert.False(t, ok)
	_, ok = o.SessionByOrder("123")
	assert.False(t, ok)
}

func TestOpen_ProviderError_NothingRegistered(t *testing.T) {
	provider := &fakeProvider{createErr: assert.AnError}
	o := NewOrchestrator(provider)

	_, err := o.Open(context.Background(), Input{OrderID: "123", Amount: 1000, Email: "a@b.com"}, nil, nil)

	require.Error(t, err)
	_, ok := o.SessionByOrder("123")
	assert.False(t, ok)
}

func TestConfirm_BeforeSecretIssued_Refused(t *testing.T) {
	o := NewOrchestrator(&fakeProvider{})

	// Session encore en "created" : l'intent n'a pas abouti, pas de secret.
	session := &Session{Payment: models.PaymentSession{ID: "s1", OrderID: "123", State: models.PaymentCreated}}
	o.register(session)

	_, err := o.Confirm(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNoClientSecret)
}

func TestConfirm_Declined_RetryableSameSecret(t *testing.T) {
	provider := &fakeProvider{retrieveSeq: []string{StatusRequiresPaymentMethod, StatusSucceeded}}
	o := NewOrchestrator(provider)

	var calls int32
	session, err := o.Open(context.Background(), Input{OrderID: "123", Amount: 1000, Email: "a@b.com"},
		func(string) { atomic.AddInt32(&calls, 1) }, nil)
	require.NoError(t, err)
	secret := session.Payment.ClientSecret

	outcome, err := o.Confirm(context.Background(), session.Payment.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Retryable)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, models.PaymentMethodCollected, session.State())
	// Même client_secret pour la nouvelle tentative.
	assert.Equal(t, secret, session.Payment.ClientSecret)
	assert.Len(t, provider.created, 1)

	outcome, err = o.Confirm(context.Background(), session.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, outcome.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestConfirm_RequiresAction_Redirect(t *testing.T) {
	provider := &fakeProvider{status: StatusRequiresAction}
	o := NewOrchestrator(provider)

	session, err := o.Open(context.Background(), Input{OrderID: "123", Amount: 1000, Email: "a@b.com"}, nil, nil)
	require.NoError(t, err)

	outcome, err := o.Confirm(context.Background(), session.Payment.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Redirect)
	assert.Equal(t, models.PaymentRequiresAction, session.State())

	// Au retour du redirect, la complétion converge via HandleCompletion.
	assert.True(t, o.HandleCompletion("123", "pi_abc"))
	assert.Equal(t, models.PaymentSucceeded, session.State())
}

func TestConfirm_TransientError_Retryable(t *testing.T) {
	provider := &fakeProvider{retrieveErr: assert.AnError}
	o := NewOrchestrator(provider)

	session, err := o.Open(context.Background(), Input{OrderID: "123", Amount: 1000, Email: "a@b.com"}, nil, nil)
	require.NoError(t, err)

	outcome, err := o.Confirm(context.Background(), session.Payment.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Retryable)
	assert.Equal(t, models.PaymentMethodCollected, session.State())
}

func TestCancel_FiresCancelOnce_NoProcessorCleanup(t *testing.T) {
	provider := &fakeProvider{}
	o := NewOrchestrator(provider)

	var cancels int32
	session, err := o.Open(context.Background(), Input{OrderID: "123", Amount: 1000, Email: "a@b.com"},
		nil, func() { atomic.AddInt32(&cancels, 1) })
	require.NoError(t, err)

	require.NoError(t, o.Cancel(session.Payment.ID))

	assert.Equal(t, int32(1), atomic.LoadInt32(&cancels))
	assert.Equal(t, models.PaymentAbandoned, session.State())

	// Terminée : évincée, donc ni re-annulable ni confirmable.
	assert.ErrorIs(t, o.Cancel(session.Payment.ID), ErrSessionNotFound)
	_, err = o.Confirm(context.Background(), session.Payment.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
