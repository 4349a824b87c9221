package payments

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sozdatel3/server-for-arcanBot/internal/api"
)

// Handler принимает серверные уведомления Robokassa.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/result", h.handleResult)
	r.Get("/link", h.handlePaymentLink)
	return r
}

// handleResult — ResultURL магазина. Robokassa присылает параметры
// формой, при успехе ждёт в теле ровно "OK{InvId}".
func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		api.BadRequest(w, "не удалось разобрать параметры")
		return
	}

	amount := r.FormValue("OutSum")
	invoiceRaw := r.FormValue("InvId")
	userRaw := r.FormValue("Shp_id")
	signature := r.FormValue("SignatureValue")

	invoiceID, err := strconv.ParseInt(invoiceRaw, 10, 64)
	if err != nil {
		api.BadRequest(w, "некорректный номер счёта")
		return
	}

	if err := h.service.HandleResult(r.Context(), amount, invoiceRaw, userRaw, signature, invoiceID); err != nil {
		api.ServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "OK%d", invoiceID)
}

// handlePaymentLink отдаёт боту готовую подписанную ссылку на оплату.
func (h *Handler) handlePaymentLink(w http.ResponseWriter, r *http.Request) {
	userID, err := api.QueryInt64(r, "user_id")
	if err != nil {
		api.BadRequest(w, "некорректный user_id")
		return
	}
	invoiceID, err := api.QueryInt64(r, "invoice_id")
	if err != nil {
		api.BadRequest(w, "некорректный invoice_id")
		return
	}
	amount := r.URL.Query().Get("amount")
	if amount == "" {
		api.BadRequest(w, "не указана сумма")
		return
	}
	description := r.URL.Query().Get("description")

	link := h.service.Signer().PaymentURL(amount, invoiceID, userID, description)
	api.JSON(w, http.StatusOK, map[string]string{"url": link})
}
