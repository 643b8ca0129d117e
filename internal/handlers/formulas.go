package handlers

import (
	"net/http"
	"strings"

	"scentledger/internal/formulas"
	"scentledger/models"
)

type noteRequest struct {
	Content string `json:"content"`
}

// ListFormulas returns mirrored formulae. ?type=draft lists drafts, ?type=all
// lists both, anything else lists mixtures.
func ListFormulas(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	var out []models.Formula
	switch strings.ToLower(r.URL.Query().Get("type")) {
	case "draft":
		out = ws.Formulas.Drafts()
	case "all":
		out = append(ws.Formulas.Mixtures(), ws.Formulas.Drafts()...)
	default:
		out = ws.Formulas.Mixtures()
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateFormula records a mixture or a draft.
func CreateFormula(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	var builder formulas.Builder
	if !decodeJSON(w, r, &builder) {
		return
	}
	formula, err := ws.Formulas.Create(r.Context(), builder)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, formula)
}

// ShowFormula reads one formula from the database.
func ShowFormula(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	formula, err := ws.Formulas.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formula)
}

// DeleteFormula removes a formula without touching inventory.
func DeleteFormula(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := ws.Formulas.Remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UndoFormula removes a formula and gives its grams back to inventory.
func UndoFormula(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := ws.Formulas.Undo(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PromoteFormula turns a draft into a mixture.
func PromoteFormula(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	formula, err := ws.Formulas.Promote(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formula)
}

func AddFormulaNote(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := ws.Formulas.AddNote(r.Context(), id, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func EditFormulaNote(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	noteID, ok := pathID(w, r, "note")
	if !ok {
		return
	}
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := ws.Formulas.EditNote(r.Context(), noteID, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func DeleteFormulaNote(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	noteID, ok := pathID(w, r, "note")
	if !ok {
		return
	}
	if err := ws.Formulas.RemoveNote(r.Context(), id, noteID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
