package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"velora_back_end/internal/models"

	"github.com/google/uuid"
)

// Input est ce que la page de checkout doit fournir. Les trois champs
// sont obligatoires ; Amount est déjà en centimes.
type Input struct {
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Email   string `json:"email"`
}

// ValidationError est terminale : aucun appel au processeur n'a lieu.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "champs requis manquants: " + strings.Join(e.Missing, ", ")
}

var (
	ErrSessionNotFound  = errors.New("session de paiement introuvable")
	ErrConfirmInFlight  = errors.New("une confirmation est déjà en cours")
	ErrSessionFinalized = errors.New("session de paiement déjà terminée")
	ErrNoClientSecret   = errors.New("client_secret pas encore émis")
)

// Outcome décrit le résultat d'une confirmation pour la page.
type Outcome struct {
	Status     string `json:"status"`
	PaymentRef string `json:"payment_ref,omitempty"`
	Retryable  bool   `json:"retryable"`
	Redirect   bool   `json:"redirect"`
	Message    string `json:"message,omitempty"`
}

// Session suit une tentative de checkout du début à la fin. onSuccess
// et onCancel sont appelés au plus une fois chacun, quel que soit le
// nombre de chemins de complétion qui aboutissent (confirmation
// directe, message popup, les deux).
type Session struct {
	Payment models.PaymentSession

	mu          sync.Mutex
	confirming  bool
	successOnce sync.Once
	cancelOnce  sync.Once
	onSuccess   func(paymentRef string)
	onCancel    func()

	// evict retire la session des registres de l'orchestrateur une fois
	// la session terminée. L'idempotence inter-processus vit dans le
	// ledger, pas ici.
	evict func()
}

func (s *Session) State() models.PaymentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Payment.State
}

func (s *Session) setState(state models.PaymentState) {
	s.mu.Lock()
	s.Payment.State = state
	s.mu.Unlock()
}

// fireSuccess garantit "au plus un onSuccess" même en cas de livraison
// dupliquée du message de complétion.
func (s *Session) fireSuccess(paymentRef string) {
	s.successOnce.Do(func() {
		s.setState(models.PaymentSucceeded)
		if s.onSuccess != nil {
			s.onSuccess(paymentRef)
		}
		if s.evict != nil {
			s.evict()
		}
	})
}

func (s *Session) fireCancel() {
	s.cancelOnce.Do(func() {
		s.setState(models.PaymentAbandoned)
		if s.onCancel != nil {
			s.onCancel()
		}
		if s.evict != nil {
			s.evict()
		}
	})
}

// Orchestrator séquence création de commande → création d'intent →
// collecte → confirmation. La commande doit exister avant qu'on ouvre
// une session ; c'est le handler qui impose cet ordre.
type Orchestrator struct {
	provider Provider

	mu       sync.RWMutex
	sessions map[string]*Session
	byOrder  map[string]*Session
}

func NewOrchestrator(provider Provider) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		sessions: make(map[string]*Session),
		byOrder:  make(map[string]*Session),
	}
}

// Open valide l'entrée, crée le PaymentIntent et rend la session avec
// son client_secret. Tant que ce secret n'existe pas, aucune
// soumission n'est possible côté page.
func (o *Orchestrator) Open(ctx context.Context, in Input, onSuccess func(string), onCancel func()) (*Session, error) {
	var missing []string
	if in.OrderID == "" {
		missing = append(missing, "order_id")
	}
	if in.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	// La session naît en "created" : tant que le secret n'existe pas,
	// aucune confirmation n'est possible.
	session := &Session{
		Payment: models.PaymentSession{
			ID:        uuid.NewString(),
			OrderID:   in.OrderID,
			Amount:    in.Amount,
			Email:     in.Email,
			State:     models.PaymentCreated,
			CreatedAt: time.Now(),
		},
		onSuccess: onSuccess,
		onCancel:  onCancel,
	}
	o.register(session)

	intent, err := o.provider.CreateIntent(ctx, in.Amount, in.OrderID, in.Email)
	if err != nil {
		o.remove(session)
		return nil, fmt.Errorf("création du paiement impossible: %w", err)
	}

	session.mu.Lock()
	session.Payment.IntentID = intent.ID
	session.Payment.ClientSecret = intent.ClientSecret
	// Le secret est remis à la page : la collecte peut commencer.
	session.Payment.State = models.PaymentMethodCollected
	session.mu.Unlock()

	log.Printf("🧾 Session checkout %s ouverte (commande %s, %d centimes)", session.Payment.ID, in.OrderID, in.Amount)
	return session, nil
}

func (o *Orchestrator) register(session *Session) {
	session.evict = func() { o.remove(session) }
	o.mu.Lock()
	o.sessions[session.Payment.ID] = session
	o.byOrder[session.Payment.OrderID] = session
	o.mu.Unlock()
}

// remove évince la session des deux index. Sans ça, chaque checkout
// laisserait une entrée pour toute la vie du processus.
func (o *Orchestrator) remove(session *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.sessions, session.Payment.ID)
	if o.byOrder[session.Payment.OrderID] == session {
		delete(o.byOrder, session.Payment.OrderID)
	}
}

func (o *Orchestrator) Session(id string) (*Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	return s, ok
}

func (o *Orchestrator) SessionByOrder(orderID string) (*Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.byOrder[orderID]
	return s, ok
}

// Confirm vérifie l'état réel de l'intent auprès du processeur et
// traite les trois issues possibles. Une seule confirmation à la fois
// par session : le double-clic ne crée pas de double paiement.
func (o *Orchestrator) Confirm(ctx context.Context, sessionID string) (Outcome, error) {
	session, ok := o.Session(sessionID)
	if !ok {
		return Outcome{}, ErrSessionNotFound
	}

	session.mu.Lock()
	switch session.Payment.State {
	case models.PaymentSucceeded, models.PaymentAbandoned:
		session.mu.Unlock()
		return Outcome{}, ErrSessionFinalized
	case models.PaymentCreated:
		// Pas de client_secret, donc rien à confirmer.
		session.mu.Unlock()
		return Outcome{}, ErrNoClientSecret
	}
	if session.confirming {
		session.mu.Unlock()
		return Outcome{}, ErrConfirmInFlight
	}
	session.confirming = true
	session.Payment.State = models.PaymentConfirming
	intentID := session.Payment.IntentID
	session.mu.Unlock()

	defer func() {
		session.mu.Lock()
		session.confirming = false
		session.mu.Unlock()
	}()

	intent, err := o.provider.RetrieveIntent(ctx, intentID)
	if err != nil {
		// Échec transitoire : la session redevient confirmable.
		session.setState(models.PaymentMethodCollected)
		return Outcome{Retryable: true, Message: "Vérification du paiement impossible, réessayez"}, nil
	}

	switch intent.Status {
	case StatusSucceeded, StatusProcessing:
		session.fireSuccess(intent.ID)
		return Outcome{Status: intent.Status, PaymentRef: intent.ID}, nil

	case StatusRequiresPaymentMethod:
		// Carte refusée : on resurface l'erreur et on réutilise le même
		// client_secret pour la nouvelle tentative (même commande, même
		// montant — pas de nouvel intent).
		session.setState(models.PaymentMethodCollected)
		return Outcome{
			Status:    intent.Status,
			Retryable: true,
			Message:   "Paiement refusé, vérifiez votre moyen de paiement",
		}, nil

	case StatusRequiresAction:
		// 3-D Secure : le contrôle quitte la page, la page de complétion
		// prendra le relais au retour du redirect.
		session.setState(models.PaymentRequiresAction)
		return Outcome{Status: intent.Status, Redirect: true}, nil

	default:
		session.setState(models.PaymentFailed)
		return Outcome{Status: intent.Status, Message: "Paiement échoué"}, nil
	}
}

// HandleCompletion est le point de convergence : appelé quand un
// message de complétion arrive (popup) ou quand le retour de redirect
// aboutit. Livraisons dupliquées sans effet.
func (o *Orchestrator) HandleCompletion(orderID, paymentRef string) bool {
	session, ok := o.SessionByOrder(orderID)
	if !ok {
		return false
	}
	session.fireSuccess(paymentRef)
	return true
}

// Cancel : l'utilisateur renonce avant confirmation. Aucun nettoyage
// côté processeur — une PaymentSession orpheline est acceptée.
func (o *Orchestrator) Cancel(sessionID string) error {
	session, ok := o.Session(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	session.fireCancel()
	log.Printf("🚪 Session checkout %s abandonnée (commande %s)", sessionID, session.Payment.OrderID)
	return nil
}
