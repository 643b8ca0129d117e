package handlers

import (
	"net/http"

	"scentledger/internal/trials"
)

func ListTrials(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Trials.Trials())
}

func CreateTrial(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	var spec trials.Spec
	if !decodeJSON(w, r, &spec) {
		return
	}
	trial, err := ws.Trials.Create(r.Context(), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, trial)
}

func ShowTrial(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	trial, err := ws.Trials.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trial)
}

func DeleteTrial(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := ws.Trials.Remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func AddTrialNote(w http.ResponseWriter, r *http.Request) {
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
	note, err := ws.Trials.AddNote(r.Context(), id, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func EditTrialNote(w http.ResponseWriter, r *http.Request) {
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
	note, err := ws.Trials.EditNote(r.Context(), noteID, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func DeleteTrialNote(w http.ResponseWriter, r *http.Request) {
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
	if err := ws.Trials.RemoveNote(r.Context(), id, noteID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
