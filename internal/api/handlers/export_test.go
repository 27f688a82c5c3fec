package handlers

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/NubleX/LEGION2/internal/api/handlers/mocks"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/export"
	"github.com/NubleX/LEGION2/internal/logging"
)

func newExportRouter(t *testing.T) (*mocks.MockEngine, *mux.Router) {
	t.Helper()
	eng := mocks.NewMockEngine(gomock.NewController(t))
	h := NewExportHandler(eng, logging.Discard())
	h.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	r := mux.NewRouter()
	r.HandleFunc("/export", h.Export).Methods(http.MethodGet)
	return eng, r
}

func TestExport(t *testing.T) {
	tests := []struct {
		query       string
		format      export.Format
		ids         []string
		contentType string
	}{
		{"", export.FormatJSON, nil, "application/json"},
		{"format=csv", export.FormatCSV, nil, "text/csv"},
		{"format=XML&ids=h1,h2", export.FormatXML, []string{"h1", "h2"}, "application/xml"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			eng, r := newExportRouter(t)
			eng.EXPECT().ExportHosts(gomock.Any(), gomock.Any(), tt.format, tt.ids).
				DoAndReturn(func(_ any, w io.Writer, _ export.Format, _ []string) error {
					_, err := io.WriteString(w, "payload")
					return err
				})

			w := do(r, http.MethodGet, "/export?"+tt.query, "")

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "payload", w.Body.String())
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.Equal(t,
				`attachment; filename="legion-hosts-20260304-050607.`+string(tt.format)+`"`,
				w.Header().Get("Content-Disposition"))
		})
	}
}

func TestExportUnknownFormat(t *testing.T) {
	_, r := newExportRouter(t)

	w := do(r, http.MethodGet, "/export?format=yaml", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(errors.CodeValidation), decode[ErrorResponse](t, w).Code)
}

func TestExportMissingHost(t *testing.T) {
	eng, r := newExportRouter(t)
	eng.EXPECT().ExportHosts(gomock.Any(), gomock.Any(), export.FormatJSON, []string{"gone"}).
		DoAndReturn(func(_ any, w io.Writer, _ export.Format, _ []string) error {
			_, _ = io.WriteString(w, `{"partial":`)
			return errors.ErrNotFoundWithID("host", "gone")
		})

	w := do(r, http.MethodGet, "/export?ids=gone", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.NotContains(t, w.Body.String(), "partial")
}
