package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"pagepilot-go/middleware"
	"pagepilot-go/sheets"
	"pagepilot-go/utils"

	log "github.com/sirupsen/logrus"
)

const reportLoadError = "Failed to load report data: Invalid Report ID, Please Check and try again or contact support."

func (h *Handlers) fetchReport(sheetID, query string) (*sheets.Report, error) {
	report, err := h.sheets.Fetch(sheetID)
	if err != nil {
		return nil, err
	}
	return report.Filter(query), nil
}

// Report renders the sheet-backed report page: search filter, newest-first
// rows, 20 per page, and a CSV download mode. POST updates the sheet ID.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	agentConfig, err := h.getOrCreateAgentConfig(claims.UserID)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load agent config", nil)
		return
	}

	if r.Method == http.MethodPost {
		var req struct {
			GoogleSheetID string `json:"google_sheet_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
		newID := utils.SanitizeString(req.GoogleSheetID)
		if newID != "" {
			agentConfig.GoogleSheetID = newID
			if err := h.db.Save(agentConfig).Error; err != nil {
				sendError(w, http.StatusInternalServerError, "Failed to save sheet ID", nil)
				return
			}
		}
		sendJSON(w, http.StatusOK, map[string]string{"message": "Report ID updated successfully!"})
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	response := map[string]interface{}{
		"google_sheet_id": agentConfig.GoogleSheetID,
		"query":           query,
		"columns":         []string{},
		"data":            [][]string{},
		"error":           nil,
	}

	if agentConfig.GoogleSheetID == "" {
		sendJSON(w, http.StatusOK, response)
		return
	}

	report, err := h.fetchReport(agentConfig.GoogleSheetID, query)
	if err != nil {
		// The request still completes with the best available partial
		// state: an empty table plus a user-visible message.
		log.WithError(err).WithField("user_id", claims.UserID).Warn("report fetch failed")
		response["error"] = reportLoadError
		sendJSON(w, http.StatusOK, response)
		return
	}

	if r.URL.Query().Get("download") == "true" {
		h.downloadReportCSV(w, report)
		return
	}

	pageNumber, _ := strconv.Atoi(r.URL.Query().Get("page"))
	rows, pageNum, totalPages := report.Page(pageNumber)

	response["columns"] = report.Columns
	response["data"] = rows
	response["page"] = pageNum
	response["total_pages"] = totalPages
	response["total_records"] = len(report.Rows)
	sendJSON(w, http.StatusOK, response)
}

func (h *Handlers) downloadReportCSV(w http.ResponseWriter, report *sheets.Report) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="report.csv"`)
	writer := csv.NewWriter(w)
	writer.Write(report.Columns)
	for _, row := range report.Rows {
		writer.Write(row)
	}
	writer.Flush()
}

// ReportData is the JSON endpoint the report page polls for refreshes.
func (h *Handlers) ReportData(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	agentConfig, err := h.getOrCreateAgentConfig(claims.UserID)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Failed to load agent config", nil)
		return
	}

	if agentConfig.GoogleSheetID == "" {
		sendJSON(w, http.StatusBadRequest, map[string]string{"error": "No sheet ID configured"})
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	report, err := h.fetchReport(agentConfig.GoogleSheetID, query)
	if err != nil {
		sendJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	pageNumber, _ := strconv.Atoi(r.URL.Query().Get("page"))
	rows, pageNum, totalPages := report.Page(pageNumber)

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"columns":       report.Columns,
		"data":          rows,
		"page":          pageNum,
		"total_pages":   totalPages,
		"total_records": len(report.Rows),
		"has_previous":  pageNum > 1,
		"has_next":      pageNum < totalPages,
	})
}
