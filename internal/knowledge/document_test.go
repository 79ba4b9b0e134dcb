package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDocument_DeterministicIdentity(t *testing.T) {
	a := NewDocument("kb/sla.md", "Notre SLA est de 4 heures.", time.Now())
	b := NewDocument("kb/sla.md", "Notre SLA est de 4 heures.", time.Now().Add(time.Hour))

	assert.Equal(t, a.ID, b.ID, "identity must not depend on modification time")
	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.Len(t, a.ID, 32)
}

func TestNewDocument_ContentChangeChangesIdentity(t *testing.T) {
	before := NewDocument("kb/sla.md", "SLA de 4 heures.", time.Time{})
	after := NewDocument("kb/sla.md", "SLA de 2 heures.", time.Time{})

	assert.NotEqual(t, before.ContentHash, after.ContentHash)
	assert.NotEqual(t, before.ID, after.ID)
}

func TestNewDocument_PathDistinguishesIdenticalContent(t *testing.T) {
	a := NewDocument("kb/a.md", "Contenu identique.", time.Time{})
	b := NewDocument("kb/b.md", "Contenu identique.", time.Time{})

	assert.Equal(t, a.ContentHash, b.ContentHash)
	assert.NotEqual(t, a.ID, b.ID)
}
