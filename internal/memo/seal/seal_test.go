package seal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContent() Content {
	return Content{
		MemoID:          "5f0c8a44-3e0a-4d29-9a1c-17f6f2b7f001",
		ClientID:        "5f0c8a44-3e0a-4d29-9a1c-17f6f2b7f002",
		MemoType:        "INITIAL",
		Title:           "California nexus determination",
		Sections:        json.RawMessage(`{"facts":"...","analysis":"..."}`),
		Conclusion:      "Nexus established.",
		Recommendations: "Register with the CDTFA.",
	}
}

func TestDigest_Deterministic(t *testing.T) {
	first, err := Digest(testContent(), nil)
	require.NoError(t, err)
	second, err := Digest(testContent(), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestDigest_KeyOrderIrrelevant(t *testing.T) {
	a := testContent()
	a.Sections = json.RawMessage(`{"analysis":"x","facts":"y"}`)
	b := testContent()
	b.Sections = json.RawMessage(`{"facts":"y","analysis":"x"}`)

	first, err := Digest(a, nil)
	require.NoError(t, err)
	second, err := Digest(b, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDigest_ContentChangesHash(t *testing.T) {
	base, err := Digest(testContent(), nil)
	require.NoError(t, err)

	edited := testContent()
	edited.Conclusion = "No nexus."
	changed, err := Digest(edited, nil)
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)
}

func TestDigest_PDFCovered(t *testing.T) {
	withPDF, err := Digest(testContent(), []byte("%PDF-1.7"))
	require.NoError(t, err)
	withoutPDF, err := Digest(testContent(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, withPDF, withoutPDF)
}
