package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// manifestHeaders is the first row of a CSV manifest.
var manifestHeaders = []string{
	"trip_passenger_id", "passenger_id", "passenger_name", "passenger_email",
	"passenger_phone", "status", "booked_at",
}

// getManifest handles GET /trips/{id}/manifest. The default is JSON; use
// ?format=csv for a spreadsheet-friendly download.
func (s *Server) getManifest(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "csv" {
		s.errors.handle(w, r, fmt.Errorf("%w: format must be json or csv", domain.ErrValidation))
		return
	}

	rows, err := s.svc.Bookings.Manifest(r.Context(), caller(r), id)
	if err != nil {
		s.errors.handle(w, r, err)
		return
	}

	if format != "csv" {
		writeJSON(w, http.StatusOK, map[string]any{"trip_id": id, "passengers": rows})
		return
	}
	body := buildManifestCSV(rows)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="manifest-%s.csv"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = body.WriteTo(w)
}

func buildManifestCSV(rows []domain.ManifestRow) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	w.Write(manifestHeaders)
	for _, r := range rows {
		//nolint:errcheck
		w.Write(manifestRecord(r))
	}
	w.Flush()
	return &buf
}

func manifestRecord(r domain.ManifestRow) []string {
	return []string{
		r.TripPassengerID.String(),
		r.PassengerID.String(),
		r.PassengerName,
		r.PassengerEmail,
		r.PassengerPhone,
		string(r.Status),
		r.BookedAt.UTC().Format(time.RFC3339),
	}
}
