package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rpggio/qms/internal/workflow"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()

	r.ObserveCommand("route", "ok")
	r.ObserveCommand("route", "ok")
	r.ObserveCommand("route", "approval_gate_unsatisfied")
	r.ObserveTransition("SOP", workflow.StatusDraft, workflow.StatusInReview)

	require.Equal(t, 2.0, testutil.ToFloat64(r.commands.WithLabelValues("route", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("route", "approval_gate_unsatisfied")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("SOP", "DRAFT", "IN_REVIEW")))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveCommand("create", "ok")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `qms_document_commands_total{command="create",kind="ok"} 1`)
}

func TestRecorders_AreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveCommand("create", "ok")
	require.Equal(t, 0.0, testutil.ToFloat64(b.commands.WithLabelValues("create", "ok")))
}
