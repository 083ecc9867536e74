package checkout

import (
	"context"
	"log"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
)

// Intent est la vue minimale d'un PaymentIntent côté orchestrateur.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Statuts processeur qu'on sait traiter.
const (
	StatusSucceeded             = "succeeded"
	StatusProcessing            = "processing"
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresAction        = "requires_action"
)

// Provider abstrait le processeur de paiement. L'implémentation Stripe
// est la seule réelle ; les tests branchent un faux.
type Provider interface {
	CreateIntent(ctx context.Context, amount int64, orderID, email string) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
}

// StripeProvider crée les PaymentIntents avec order_id et email en
// métadonnées — c'est ce qui permet la réconciliation côté Stripe.
type StripeProvider struct {
	Currency string
}

func NewStripeProvider() *StripeProvider {
	return &StripeProvider{Currency: "eur"}
}

// CreateIntent reçoit amount déjà en centimes : on le transmet tel
// quel, sans re-multiplier ni diviser.
func (p *StripeProvider) CreateIntent(ctx context.Context, amount int64, orderID, email string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"order_id": orderID,
			"email":    email,
		},
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		log.Printf("❌ Erreur Stripe (create intent): %v", err)
		return nil, err
	}

	log.Printf("💳 PaymentIntent créé : %s (%d centimes) pour commande %s", intent.ID, amount, orderID)
	return &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}, nil
}

func (p *StripeProvider) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := paymentintent.Get(intentID, params)
	if err != nil {
		log.Printf("❌ Erreur Stripe (get intent): %v", err)
		return nil, err
	}
	return &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
	}, nil
}
