package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/marketwell/payhub/libs/clients"
	errorutils "github.com/marketwell/payhub/libs/errors"
	"github.com/marketwell/payhub/libs/handlers"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
)

// Router for payments endpoints
func Router(service *Service) chi.Router {
	r := chi.NewRouter()
	r.Method("POST", "/incoming", InitiateIncoming(service))
	r.Method("POST", "/outgoing", InitiateOutgoing(service))
	r.Method("POST", "/{reference}/settle", SettleTransaction(service))
	r.Method("POST", "/{reference}/cancel", CancelTransaction(service))
	r.Method("GET", "/convert", ConvertAmount(service))
	r.Method("GET", "/{reference}", GetTransaction(service))
	r.Method("GET", "/", ListTransactions(service))
	return r
}

// InitiateRequest is the body for both initiation endpoints
type InitiateRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Purpose           string          `json:"purpose"`
	Description       string          `json:"description"`
	ReturnURL         string          `json:"returnUrl"`
	Provider          string          `json:"provider"`
	SettleImmediately bool            `json:"settleImmediately"`
	BeneficiaryID     *uuid.UUID      `json:"beneficiaryId"`
}

func (req *InitiateRequest) draft() TransactionDraft {
	return TransactionDraft{
		Amount:        req.Amount,
		Currency:      req.Currency,
		Purpose:       req.Purpose,
		Description:   req.Description,
		ReturnURL:     req.ReturnURL,
		BeneficiaryID: req.BeneficiaryID,
	}
}

// actor returns the authenticated back office user driving the request
func actor(r *http.Request) (string, *handlers.AppError) {
	initiatedBy := r.Header.Get("X-Initiated-By")
	if initiatedBy == "" {
		return "", handlers.ValidationError("request headers", map[string]string{
			"X-Initiated-By": "header is required",
		})
	}
	return initiatedBy, nil
}

func appError(err error) *handlers.AppError {
	switch {
	case errors.Is(err, errorutils.ErrNotFound):
		return handlers.WrapError(err, "resource not found", http.StatusNotFound)
	case errors.Is(err, errorutils.ErrValidation):
		return handlers.WrapError(err, "invalid request", http.StatusBadRequest)
	case errors.Is(err, errorutils.ErrBusinessRule):
		return handlers.WrapError(err, "operation not allowed", http.StatusConflict)
	case errors.Is(err, errorutils.ErrHealthCheckFailed):
		return handlers.WrapError(err, "payment provider unavailable", http.StatusServiceUnavailable)
	}
	if state, stateErr := clients.UnwrapHTTPState(err); stateErr == nil {
		appErr := handlers.WrapError(err, "upstream provider error", http.StatusBadGateway)
		appErr.Data = state
		return appErr
	}
	return handlers.WrapError(err, "internal server error", http.StatusInternalServerError)
}

// InitiateIncoming is the handler for creating incoming transactions
func InitiateIncoming(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		var req InitiateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		initiatedBy, appErr := actor(r)
		if appErr != nil {
			return appErr
		}

		tx, info, err := service.InitiateIncoming(r.Context(), req.draft(), req.Provider, req.SettleImmediately, initiatedBy)
		if err != nil {
			return appError(err)
		}

		return handlers.RenderContent(r.Context(), struct {
			Transaction *Transaction  `json:"transaction"`
			Checkout    *CheckoutInfo `json:"checkout"`
		}{tx, info}, w, http.StatusCreated)
	}
}

// InitiateOutgoing is the handler for creating outgoing transactions
func InitiateOutgoing(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		var req InitiateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		initiatedBy, appErr := actor(r)
		if appErr != nil {
			return appErr
		}

		tx, err := service.InitiateOutgoing(r.Context(), req.draft(), req.Provider, req.SettleImmediately, initiatedBy)
		if err != nil {
			return appError(err)
		}

		return handlers.RenderContent(r.Context(), tx, w, http.StatusCreated)
	}
}

// SettleTransaction is the handler for settling an initiated transaction
func SettleTransaction(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		initiatedBy, appErr := actor(r)
		if appErr != nil {
			return appErr
		}

		tx, err := service.Settle(r.Context(), chi.URLParam(r, "reference"),
			r.URL.Query().Get("provider"), initiatedBy)
		if err != nil {
			return appError(err)
		}

		return handlers.RenderContent(r.Context(), tx, w, http.StatusOK)
	}
}

// CancelTransaction is the handler for cancelling an initiated transaction
func CancelTransaction(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		initiatedBy, appErr := actor(r)
		if appErr != nil {
			return appErr
		}

		tx, err := service.Cancel(r.Context(), chi.URLParam(r, "reference"), initiatedBy)
		if err != nil {
			return appError(err)
		}

		return handlers.RenderContent(r.Context(), tx, w, http.StatusOK)
	}
}

// GetTransaction is the handler for retrieving a transaction by reference
func GetTransaction(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		tx, err := service.GetTransaction(r.Context(), chi.URLParam(r, "reference"))
		if err != nil {
			return appError(err)
		}

		return handlers.RenderContent(r.Context(), tx, w, http.StatusOK)
	}
}

// ListTransactions is the handler for the back office transaction listing
func ListTransactions(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		txs, err := service.ListTransactions(r.Context(),
			r.URL.Query().Get("provider"), r.URL.Query().Get("status"))
		if err != nil {
			return appError(err)
		}

		return handlers.RenderContent(r.Context(), txs, w, http.StatusOK)
	}
}

// ConvertAmount is the handler for ad hoc currency conversion
func ConvertAmount(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
		if err != nil {
			return handlers.ValidationError("query parameters", map[string]string{
				"amount": "must be a decimal number",
			})
		}

		base := r.URL.Query().Get("base")
		target := r.URL.Query().Get("target")

		converted, err := service.Convert(r.Context(), base, target, amount)
		if err != nil {
			return appError(err)
		}

		return handlers.RenderContent(r.Context(), struct {
			Base   string          `json:"base"`
			Target string          `json:"target"`
			Amount decimal.Decimal `json:"amount"`
			Result decimal.Decimal `json:"result"`
		}{base, target, amount, converted}, w, http.StatusOK)
	}
}
