package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/pantry/internal/grocery"
	"github.com/dukerupert/pantry/internal/middleware"
	"github.com/dukerupert/pantry/internal/parser"
	"github.com/dukerupert/pantry/internal/shopping"
	ws "github.com/dukerupert/pantry/internal/websocket"
)

const maxBodyBytes = 64 << 10

// Publisher receives list change events.
type Publisher interface {
	Publish(ws.Event)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps domain errors to status codes. Anything unrecognized is
// logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	var perr *parser.Error
	switch {
	case errors.Is(err, grocery.ErrEmptyInput),
		errors.Is(err, grocery.ErrTooManyLines),
		errors.Is(err, grocery.ErrInvalidQuantity),
		errors.Is(err, shopping.ErrInvalidQuantity),
		errors.Is(err, shopping.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, grocery.ErrProductNotFound),
		errors.Is(err, shopping.ErrEntryNotFound),
		errors.Is(err, shopping.ErrHistoryNotFound),
		errors.Is(err, shopping.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, shopping.ErrProductGone):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.As(err, &perr):
		writeJSON(w, parserStatus(perr.Kind), errorBody{Error: "item parsing failed", Kind: string(perr.Kind)})
	case errors.Is(err, grocery.ErrInvalidCatalogInput):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "item parsing failed", Kind: string(parser.KindMalformed)})
	default:
		logger.Error(msg, "request_id", middleware.RequestID(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msg})
	}
}

func parserStatus(kind parser.ErrorKind) int {
	switch kind {
	case parser.KindNotInitialized, parser.KindRateLimit:
		return http.StatusServiceUnavailable
	case parser.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
