package gateway

import "fmt"

// Codes d'erreur structurés. Le backend amont renvoie un champ "code"
// dans ses réponses d'erreur ; on ne fait plus de pattern-matching sur
// le texte du message.
const (
	CodeAuthRequired   = "AUTH_REQUIRED"
	CodeValidation     = "VALIDATION"
	CodeOwnProduct     = "OWN_PRODUCT"
	CodeOutOfStock     = "OUT_OF_STOCK"
	CodeNotFound       = "NOT_FOUND"
	CodeUpstream       = "UPSTREAM"
	CodePayment        = "PAYMENT"
	CodeConfirmRemoval = "CONFIRM_REMOVAL"
)

// APIError est la forme normalisée de tout échec amont : un code stable
// pour brancher le comportement, un message pour l'utilisateur.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s: %s", e.Code, e.Message)
}

// AsAPIError extrait l'APIError d'une erreur quelconque, ou renvoie une
// erreur UPSTREAM générique (réseau, JSON malformé, timeout...).
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return &APIError{Code: CodeUpstream, Message: "Service momentanément indisponible, réessayez"}
}
