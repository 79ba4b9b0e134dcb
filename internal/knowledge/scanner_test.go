package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func docPaths(docs []Document) []string {
	paths := make([]string, len(docs))
	for i, d := range docs {
		paths[i] = d.SourcePath
	}
	return paths
}

func TestScanner_ReadsSupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sla.md", "# SLA\n\nGarantie de 4 heures.\n")
	writeFile(t, root, "securite/hebergement.txt", "Données hébergées en France.")

	docs, err := NewScanner(root, nil).Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	paths := docPaths(docs)
	assert.Contains(t, paths, "sla.md")
	assert.Contains(t, paths, "securite/hebergement.txt")

	for _, d := range docs {
		assert.NotEmpty(t, d.ID)
		assert.NotEmpty(t, d.ContentHash)
		assert.NotEmpty(t, d.RawText)
	}
}

func TestScanner_FlattensMarkdownHeaders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "offre.md", "# Offre\n\n## Garanties\n\nDisponibilité 99,9%.\n")

	docs, err := NewScanner(root, nil).Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, docs[0].RawText, "# Offre > ## Garanties")
}

func TestScanner_SkipsUnsupportedAndEmptyFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.md", "Contenu valide.")
	writeFile(t, root, "image.png", "\x89PNG")
	writeFile(t, root, "vide.txt", "   \n")

	docs, err := NewScanner(root, nil).Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes.md", docs[0].SourcePath)
}

func TestScanner_MissingRootFails(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "absent"), nil).Documents(context.Background())
	require.Error(t, err)
}

func TestScanner_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.md", "Contenu.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanner(root, nil).Documents(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExcelReader_FlattensRowsAndSheets(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "references.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Clients"))
	require.NoError(t, f.SetSheetRow("Clients", "A1", &[]any{"Client", "Secteur"}))
	require.NoError(t, f.SetSheetRow("Clients", "A2", &[]any{"Acme", "Industrie"}))
	_, err := f.NewSheet("Projets")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Projets", "A1", &[]any{"Migration cloud", "2025"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	text, err := NewExcelReader().Read(path)
	require.NoError(t, err)

	assert.Contains(t, text, "[Clients]")
	assert.Contains(t, text, "Client | Secteur")
	assert.Contains(t, text, "Acme | Industrie")
	assert.Contains(t, text, "[Projets]")
	assert.Contains(t, text, "Migration cloud | 2025")
}
