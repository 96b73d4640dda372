package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"artis/internal/domain/sheetsync"
)

// SyncHandler exposes the sheet sync surface: running category syncs,
// inspecting pending rows and history, undoing batches, and managing
// archives and sheet templates.
type SyncHandler struct {
	engine   *sheetsync.Engine
	archiver *sheetsync.Archiver
	setup    *sheetsync.SheetSetup
	history  sheetsync.HistoryRepository
}

func NewSyncHandler(engine *sheetsync.Engine, archiver *sheetsync.Archiver, setup *sheetsync.SheetSetup, history sheetsync.HistoryRepository) *SyncHandler {
	return &SyncHandler{engine: engine, archiver: archiver, setup: setup, history: history}
}

type SyncRequest struct {
	// ArchiveName, when set, names the archive tab created after a
	// successful sync that added rows. Empty means a timestamped default.
	ArchiveName string `json:"archiveName,omitempty"`
}

type SyncResponse struct {
	Success    bool     `json:"success"`
	Added      int      `json:"added"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
	ArchivedTo string   `json:"archivedTo,omitempty"`
}

// HandleSync runs one category's sync. The sheet is archived and cleared
// only after a sync that actually added transactions; a batch that added
// nothing leaves the sheet in place for correction.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	syncType := sheetsync.SyncType(r.PathValue("category"))
	if !syncType.IsValid() {
		http.Error(w, "Unknown sync category", http.StatusBadRequest)
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := r.Header.Get("X-User-ID")

	var result *sheetsync.Result
	var err error
	switch syncType {
	case sheetsync.SyncConsumption:
		result, err = h.engine.SyncConsumption(r.Context(), userID)
	case sheetsync.SyncPurchases:
		result, err = h.engine.SyncPurchases(r.Context(), userID)
	case sheetsync.SyncCorrections:
		result, err = h.engine.SyncCorrections(r.Context(), userID)
	case sheetsync.SyncInitialStock:
		result, err = h.engine.SyncInitialStock(r.Context(), userID)
	}
	if err != nil {
		logrus.WithError(err).WithField("syncType", syncType).Error("sync failed")
		http.Error(w, "Sync failed", http.StatusInternalServerError)
		return
	}

	resp := SyncResponse{
		Success:  true,
		Added:    result.Added,
		Errors:   result.Errors,
		Warnings: result.Warnings,
	}

	if result.Added > 0 {
		tab, err := h.archiver.ArchiveAndClear(r.Context(), syncType, req.ArchiveName)
		if err != nil {
			// The ledger already holds the batch; surface the archive
			// problem without failing the sync.
			logrus.WithError(err).WithField("syncType", syncType).Error("post-sync archive failed")
			resp.Warnings = append(resp.Warnings, "Sheet could not be archived: "+err.Error())
		} else {
			resp.ArchivedTo = tab
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SyncHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.engine.Pending(r.Context())
	if err != nil {
		logrus.WithError(err).Error("failed to read pending rows")
		http.Error(w, "Failed to read pending rows", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type SyncHistoryResponse struct {
	Records []*sheetsync.History `json:"records"`
	Total   int64                `json:"total"`
}

func (h *SyncHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	records, total, err := h.history.List(r.Context(), limit, offset)
	if err != nil {
		logrus.WithError(err).Error("failed to list sync history")
		http.Error(w, "Failed to list sync history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*sheetsync.History{}
	}

	writeJSON(w, http.StatusOK, SyncHistoryResponse{Records: records, Total: total})
}

type UndoResponse struct {
	Success             bool  `json:"success"`
	TransactionsDeleted int64 `json:"transactionsDeleted"`
	ProductsRecomputed  int   `json:"productsRecomputed"`
}

func (h *SyncHandler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	batchID := r.PathValue("id")
	result, err := h.engine.Undo(r.Context(), batchID)
	switch {
	case errors.Is(err, sheetsync.ErrBatchNotFound):
		http.Error(w, "Sync batch not found", http.StatusNotFound)
		return
	case errors.Is(err, sheetsync.ErrAlreadyUndone):
		http.Error(w, "Sync batch already undone", http.StatusConflict)
		return
	case errors.Is(err, sheetsync.ErrNothingToUndo):
		http.Error(w, "Sync batch created no transactions", http.StatusConflict)
		return
	case err != nil:
		logrus.WithError(err).WithField("batchId", batchID).Error("undo failed")
		http.Error(w, "Undo failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, UndoResponse{
		Success:             true,
		TransactionsDeleted: result.TransactionsDeleted,
		ProductsRecomputed:  result.ProductsRecomputed,
	})
}

func (h *SyncHandler) HandleArchives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	syncType := sheetsync.SyncType(r.PathValue("type"))
	if !syncType.IsValid() {
		http.Error(w, "Unknown sync category", http.StatusBadRequest)
		return
	}

	archives, err := h.archiver.ListArchives(r.Context(), syncType)
	if err != nil {
		logrus.WithError(err).WithField("syncType", syncType).Error("failed to list archives")
		http.Error(w, "Failed to list archives", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"archives": archives})
}

func (h *SyncHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	syncType := sheetsync.SyncType(r.PathValue("type"))
	if !syncType.IsValid() {
		http.Error(w, "Unknown sync category", http.StatusBadRequest)
		return
	}

	rows, err := h.setup.Setup(r.Context(), syncType)
	if err != nil {
		logrus.WithError(err).WithField("syncType", syncType).Error("sheet setup failed")
		http.Error(w, "Sheet setup failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "rows": rows})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
