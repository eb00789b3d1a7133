package workflow_test

import (
	"testing"

	"github.com/rpggio/qms/internal/workflow"
	"github.com/stretchr/testify/require"
)

func TestLookupDocumentType(t *testing.T) {
	sop, ok := workflow.LookupDocumentType("sop")
	require.True(t, ok)
	require.False(t, sop.Executable)

	capa, ok := workflow.LookupDocumentType("CAPA")
	require.True(t, ok)
	require.True(t, capa.Executable)
	require.True(t, capa.IsChild())

	_, ok = workflow.LookupDocumentType("MEMO")
	require.False(t, ok)
}

func TestDocumentType_FormatID(t *testing.T) {
	sop, _ := workflow.LookupDocumentType("SOP")
	require.Equal(t, "SOP-003", sop.FormatID("", 3))

	rs, _ := workflow.LookupDocumentType("RS")
	require.Equal(t, "SDLC-RS", rs.FormatID("", 7))

	capa, _ := workflow.LookupDocumentType("CAPA")
	require.Equal(t, "INV-002-CAPA-001", capa.FormatID("INV-002", 1))
	require.Equal(t, "INV-002-CAPA-", capa.IDPrefix("INV-002"))
}

func TestDocumentType_AcceptsParent(t *testing.T) {
	inv, _ := workflow.LookupDocumentType("INV")
	cr, _ := workflow.LookupDocumentType("CR")
	sop, _ := workflow.LookupDocumentType("SOP")
	capa, _ := workflow.LookupDocumentType("CAPA")
	variance, _ := workflow.LookupDocumentType("VAR")

	require.True(t, capa.AcceptsParent(inv))
	require.False(t, capa.AcceptsParent(cr))
	require.True(t, variance.AcceptsParent(cr))
	require.False(t, variance.AcceptsParent(sop))
}

func TestSequenceNumber(t *testing.T) {
	n, ok := workflow.SequenceNumber("INV-002-CAPA-014")
	require.True(t, ok)
	require.Equal(t, 14, n)

	_, ok = workflow.SequenceNumber("SDLC-RS")
	require.False(t, ok)
}

func TestVersion(t *testing.T) {
	v, err := workflow.ParseVersion("0.1")
	require.NoError(t, err)
	require.Equal(t, workflow.InitialVersion, v)
	require.False(t, v.IsReleased())

	v = v.Bump(workflow.BumpMajor)
	require.Equal(t, "1.0", v.String())
	require.True(t, v.IsReleased())

	require.Equal(t, "1.1", v.Bump(workflow.BumpMinor).String())
	require.Equal(t, "1.0", v.Bump(workflow.BumpNone).String())

	_, err = workflow.ParseVersion("1")
	require.Error(t, err)
	_, err = workflow.ParseVersion("a.b")
	require.Error(t, err)
}
