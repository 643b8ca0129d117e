package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"scentledger/internal/ledger"
	"scentledger/models"
)

type materialResponse struct {
	models.AbstractMaterial
	TypeLabel string   `json:"type_label"`
	Tags      []string `json:"tags"`
	Links     []string `json:"links"`
}

func projectMaterial(m models.AbstractMaterial) materialResponse {
	return materialResponse{
		AbstractMaterial: m,
		TypeLabel:        m.Type.Label(),
		Tags:             m.TagValues(),
		Links:            m.LinkValues(),
	}
}

// ListMaterials returns the abstract material definitions, newest first.
func ListMaterials(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	materials := ws.Ledger.Abstracts()
	out := make([]materialResponse, 0, len(materials))
	for _, m := range materials {
		out = append(out, projectMaterial(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateMaterial defines a new abstract material.
func CreateMaterial(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	var spec ledger.AbstractSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	material, err := ws.Ledger.DefineAbstractMaterial(r.Context(), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectMaterial(material))
}

// UpdateMaterial overwrites an abstract material definition.
func UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var spec ledger.AbstractSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	material, err := ws.Ledger.UpdateAbstractMaterial(r.Context(), id, spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectMaterial(material))
}

// DeleteMaterial removes an abstract material and its inventory.
func DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := ws.Ledger.DeleteAbstractMaterial(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListInventory returns every inventory lot. ?material=<id> keeps only lots of
// one abstract material.
func ListInventory(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	lots := ws.Ledger.Inventory()
	if raw := r.URL.Query().Get("material"); raw != "" {
		materialID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid material")
			return
		}
		filtered := lots[:0]
		for _, lot := range lots {
			if uint64(lot.MaterialID) == materialID {
				filtered = append(filtered, lot)
			}
		}
		lots = filtered
	}
	writeJSON(w, http.StatusOK, lots)
}

// ShowInventory returns one inventory lot.
func ShowInventory(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lot, found := ws.Ledger.Get(id)
	if !found {
		writeJSONError(w, http.StatusNotFound, "inventory instance not found")
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

// AddInstance records a new lot for the abstract material in the path.
func AddInstance(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var spec ledger.InstanceSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	lot, err := ws.Ledger.AddInventoryInstance(r.Context(), id, spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lot)
}

// DeleteInstance removes one inventory lot.
func DeleteInstance(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := ws.Ledger.DeleteInventoryInstance(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateDilution makes a dilution from an existing lot.
func CreateDilution(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	var spec ledger.DilutionSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	lot, err := ws.Ledger.CreateDilutionFromInstance(r.Context(), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lot)
}

// UndoDilution deletes a dilution and credits its source.
func UndoDilution(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := ws.Ledger.UndoDilution(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListHistory returns the aggregated consumption history for formula or dilution targets.
func ListHistory(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	target := models.TargetType(strings.ToUpper(r.PathValue("target")))
	if target != models.TargetFormula && target != models.TargetDilution {
		writeJSONError(w, http.StatusBadRequest, "target must be formula or dilution")
		return
	}
	writeJSON(w, http.StatusOK, ws.Ledger.History(target))
}
