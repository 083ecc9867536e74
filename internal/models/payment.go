package models

import "time"

// États d'une session de paiement. Une session est créée pour chaque
// tentative de checkout ; un secret abandonné n'est jamais réutilisé
// pour une autre commande.
type PaymentState string

const (
	PaymentCreated         PaymentState = "created"
	PaymentMethodCollected PaymentState = "method_collected"
	PaymentConfirming      PaymentState = "confirming"
	PaymentSucceeded       PaymentState = "succeeded"
	PaymentFailed          PaymentState = "failed"
	PaymentRequiresAction  PaymentState = "requires_action"
	PaymentAbandoned       PaymentState = "abandoned"
)

// PaymentSession référence le PaymentIntent côté processeur.
// Amount est en centimes (plus petite unité) — la conversion est de la
// responsabilité de l'appelant, on ne re-multiplie jamais ici.
type PaymentSession struct {
	ID           string       `json:"id"`
	OrderID      string       `json:"order_id"`
	Amount       int64        `json:"amount"`
	Email        string       `json:"email"`
	IntentID     string       `json:"intent_id"`
	ClientSecret string       `json:"client_secret,omitempty"`
	State        PaymentState `json:"state"`
	CreatedAt    time.Time    `json:"created_at"`
}
