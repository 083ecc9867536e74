package ledger

import (
	"context"
	"sync"
	"time"

	"velora_back_end/internal/models"

	"github.com/gocql/gocql"
)

// Ledger enregistre ce qui ne doit arriver qu'une fois : la complétion
// d'une commande (page de complétion) et le traitement d'un événement
// webhook. C'est lui qui rend le back-button et les livraisons
// dupliquées inoffensifs.
type Ledger interface {
	// RecordCompletion rend true si c'est la première complétion vue
	// pour ce couple (commande, paiement).
	RecordCompletion(ctx context.Context, orderID, paymentRef string) (bool, error)
	// RecordWebhookEvent rend true si ce payment_intent n'a jamais été
	// traité par le webhook.
	RecordWebhookEvent(ctx context.Context, intentID string) (bool, error)
	// ReleaseWebhookEvent annule une réservation quand le traitement a
	// échoué : le rejeu Stripe pourra repasser.
	ReleaseWebhookEvent(ctx context.Context, intentID string) error
	SavePaymentSession(ctx context.Context, session models.PaymentSession) error
}

// ScyllaLedger : l'unicité repose sur INSERT ... IF NOT EXISTS (LWT),
// pas sur une lecture préalable.
type ScyllaLedger struct {
	session *gocql.Session
}

func NewScyllaLedger(session *gocql.Session) *ScyllaLedger {
	return &ScyllaLedger{session: session}
}

func (l *ScyllaLedger) RecordCompletion(ctx context.Context, orderID, paymentRef string) (bool, error) {
	applied, err := l.session.Query(
		`INSERT INTO payment_completions (order_id, payment_intent_id, completed_at)
		 VALUES (?, ?, ?) IF NOT EXISTS`,
		orderID, paymentRef, time.Now(),
	).WithContext(ctx).ScanCAS(nil, nil, nil)
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (l *ScyllaLedger) RecordWebhookEvent(ctx context.Context, intentID string) (bool, error) {
	applied, err := l.session.Query(
		`INSERT INTO webhook_events (payment_intent_id, processed_at)
		 VALUES (?, ?) IF NOT EXISTS`,
		intentID, time.Now(),
	).WithContext(ctx).ScanCAS(nil, nil)
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (l *ScyllaLedger) ReleaseWebhookEvent(ctx context.Context, intentID string) error {
	return l.session.Query(
		`DELETE FROM webhook_events WHERE payment_intent_id = ?`,
		intentID,
	).WithContext(ctx).Exec()
}

func (l *ScyllaLedger) SavePaymentSession(ctx context.Context, s models.PaymentSession) error {
	return l.session.Query(
		`INSERT INTO payment_sessions (session_id, order_id, amount, email, intent_id, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OrderID, s.Amount, s.Email, s.IntentID, string(s.State), s.CreatedAt,
	).WithContext(ctx).Exec()
}

// MemoryLedger sert aux tests.
type MemoryLedger struct {
	mu          sync.Mutex
	completions map[string]struct{}
	webhooks    map[string]struct{}
	Sessions    []models.PaymentSession
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		completions: make(map[string]struct{}),
		webhooks:    make(map[string]struct{}),
	}
}

func (l *MemoryLedger) RecordCompletion(_ context.Context, orderID, paymentRef string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := orderID + "|" + paymentRef
	if _, seen := l.completions[key]; seen {
		return false, nil
	}
	l.completions[key] = struct{}{}
	return true, nil
}

func (l *MemoryLedger) RecordWebhookEvent(_ context.Context, intentID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.webhooks[intentID]; seen {
		return false, nil
	}
	l.webhooks[intentID] = struct{}{}
	return true, nil
}

func (l *MemoryLedger) ReleaseWebhookEvent(_ context.Context, intentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.webhooks, intentID)
	return nil
}

func (l *MemoryLedger) SavePaymentSession(_ context.Context, s models.PaymentSession) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Sessions = append(l.Sessions, s)
	return nil
}
