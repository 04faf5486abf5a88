package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nutriwellness/nutricare/internal/httpx"
	"github.com/nutriwellness/nutricare/internal/middleware"
	"github.com/nutriwellness/nutricare/internal/notify"
	"github.com/nutriwellness/nutricare/internal/validation"
)

// contactRecipient receives the relayed contact-form messages.
const contactRecipient = "contact@nutricare.local"

type ContactHandler struct {
	Sender notify.Sender
}

func NewContactHandler(sender notify.Sender) *ContactHandler {
	return &ContactHandler{Sender: sender}
}

func (h *ContactHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /contact", h.contact)
}

type contactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (h *ContactHandler) contact(w http.ResponseWriter, r *http.Request) {
	var in contactInput
	err := decodeInput(r, &in, func() {
		in.Name = r.FormValue("name")
		in.Email = r.FormValue("email")
		in.Phone = r.FormValue("phone")
		in.Message = r.FormValue("message")
	})
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_input", nil)
		return
	}

	v := validation.Violations{}
	validation.Required("name", in.Name, v)
	validation.Required("email", in.Email, v)
	validation.Email("email", in.Email, v)
	validation.Required("message", in.Message, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}

	body := fmt.Sprintf("De: %s <%s>\n", strings.TrimSpace(in.Name), strings.TrimSpace(in.Email))
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		body += "Téléphone: " + phone + "\n"
	}
	body += "\n" + in.Message
	if err := h.Sender.Send(r.Context(), contactRecipient, "Nouveau message de contact", body); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "mail_error", nil)
		return
	}

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"sent": true})
		return
	}
	middleware.Flash(w, "Message envoyé, nous reviendrons vers vous rapidement")
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}
