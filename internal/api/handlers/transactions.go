package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dompet-app/dompet/internal/api/middleware"
	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/events"
	"github.com/dompet-app/dompet/internal/interpreter"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CommandInterpreter turns a free-text command into a parsed transaction.
type CommandInterpreter interface {
	Interpret(ctx context.Context, command string, taxonomy domain.Taxonomy) (*interpreter.ParsedCommand, error)
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	repo        store.TransactionRepository
	interpreter CommandInterpreter
	publisher   events.Publisher
	taxonomy    domain.Taxonomy
	loc         *time.Location
	now         func() time.Time
	log         zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler. Dates without
// a zone are read in loc.
func NewTransactionsHandler(repo store.TransactionRepository, interp CommandInterpreter, publisher events.Publisher, taxonomy domain.Taxonomy, loc *time.Location, log zerolog.Logger) *TransactionsHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TransactionsHandler{
		repo:        repo,
		interpreter: interp,
		publisher:   publisher,
		taxonomy:    taxonomy,
		loc:         loc,
		now:         time.Now,
		log:         log,
	}
}

// transactionRequest is the body of manual create and update requests.
type transactionRequest struct {
	Type     domain.Kind      `json:"type"`
	Amount   *decimal.Decimal `json:"amount"`
	Category string           `json:"category"`
	Note     string           `json:"note"`
	Date     string           `json:"date"`
}

func (h *TransactionsHandler) fields(req transactionRequest) (domain.TransactionFields, error) {
	if req.Amount == nil {
		return domain.TransactionFields{}, errors.New("amount is required")
	}

	category := h.taxonomy.Fallback()
	if strings.TrimSpace(req.Category) != "" {
		canonical, ok := h.taxonomy.Lookup(req.Category)
		if !ok {
			return domain.TransactionFields{}, domain.ErrUnknownCategory
		}
		category = canonical
	}

	occurredAt := h.now().In(h.loc)
	if req.Date != "" {
		t, err := parseDate(req.Date, h.loc)
		if err != nil {
			return domain.TransactionFields{}, errors.New("Invalid date format")
		}
		occurredAt = t
	}

	f := domain.TransactionFields{
		Kind:       domain.Kind(strings.TrimSpace(string(req.Type))),
		Amount:     *req.Amount,
		Category:   category,
		Note:       strings.TrimSpace(req.Note),
		OccurredAt: occurredAt,
	}
	if err := f.Validate(h.taxonomy); err != nil {
		return domain.TransactionFields{}, err
	}
	return f, nil
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, h.loc)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	filter := store.TransactionFilter{
		Start: start,
		End:   end,
		Kind:  domain.Kind(query.Get("kind")),
		Limit: queryInt(r, "limit"),
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "kind must be income or expense")
		return
	}
	if c := query.Get("category"); c != "" {
		filter.Category = h.taxonomy.Resolve(c)
	}

	transactions, err := h.repo.FindTransactionsByOwner(r.Context(), owner(r), filter)
	if err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.repo.GetTransaction(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	f, err := h.fields(req)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx := &domain.Transaction{Owner: owner(r)}
	tx.Apply(f)
	h.insert(w, r, tx)
}

// AutoTransaction handles POST /api/transactions/auto. The command is
// interpreted and the result stored dated now.
func (h *TransactionsHandler) AutoTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	parsed, err := h.interpreter.Interpret(r.Context(), req.Command, h.taxonomy)
	if err != nil {
		var ie *interpreter.Error
		if errors.As(err, &ie) {
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": ie.UserMessage(),
				"kind":  string(ie.Kind),
			})
			return
		}
		writeServiceError(w, requestLog(r, h.log), err, "interpret command")
		return
	}

	fields := parsed.Fields(h.now().In(h.loc))
	if err := fields.Validate(h.taxonomy); err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "create transaction")
		return
	}

	tx := &domain.Transaction{Owner: owner(r)}
	tx.Apply(fields)
	h.insert(w, r, tx)
}

func (h *TransactionsHandler) insert(w http.ResponseWriter, r *http.Request, tx *domain.Transaction) {
	log := requestLog(r, h.log)

	id, err := h.repo.InsertTransaction(r.Context(), tx)
	if err != nil {
		writeServiceError(w, log, err, "create transaction")
		return
	}
	tx.ID = id

	h.publish(r.Context(), log, events.NewTransactionEvent(events.TransactionCreated, *tx))

	log.Info().
		Str("transaction_id", tx.ID).
		Str("type", string(tx.Kind)).
		Str("amount", tx.Amount.String()).
		Str("category", tx.Category).
		Msg("Transaction created")

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	f, err := h.fields(req)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	log := requestLog(r, h.log)
	tx, err := h.repo.UpdateTransaction(r.Context(), owner(r), r.PathValue("id"), f)
	if err != nil {
		writeServiceError(w, log, err, "update transaction")
		return
	}

	h.publish(r.Context(), log, events.NewTransactionEvent(events.TransactionUpdated, *tx))
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log := requestLog(r, h.log)

	if err := h.repo.DeleteTransaction(r.Context(), owner(r), id); err != nil {
		writeServiceError(w, log, err, "delete transaction")
		return
	}

	h.publish(r.Context(), log, events.NewDeleteEvent(owner(r), id))
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted"})
}

// publish forwards an event to the analytics mirror. The change is already
// stored, so a failure is only logged.
func (h *TransactionsHandler) publish(ctx context.Context, log zerolog.Logger, event *events.TransactionEvent) {
	if err := h.publisher.Publish(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("event", string(event.Type)).
			Str("transaction_id", event.TransactionID).
			Msg("Failed to publish transaction event")
	}
}
