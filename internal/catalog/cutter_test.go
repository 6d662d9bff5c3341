package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnaccent(t *testing.T) {
	assert.Equal(t, "Memorias Postumas", Unaccent("Memórias Póstumas"))
	assert.Equal(t, "Joao Guimaraes", Unaccent("João Guimarães"))
	assert.Equal(t, "plain", Unaccent("plain"))
}

func TestCutter(t *testing.T) {
	// Exact table entry.
	assert.Equal(t, "112", Cutter("Ba"))
	// Surname between entries takes the insertion point, like the printed
	// table.
	assert.Equal(t, "946", Cutter("Assis"))
	// Accents do not change the lookup.
	assert.Equal(t, Cutter("Peixoto"), Cutter("Péixoto"))
}

func TestTitleFirstLetters(t *testing.T) {
	assert.Equal(t, "d", TitleFirstLetters("Dom Casmurro", 1))
	assert.Equal(t, "br", TitleFirstLetters("A Brief History", 2))
	assert.Equal(t, "gr", TitleFirstLetters("O Grande Sertão", 2))
	// Short titles append the missing count so codes stay unique.
	assert.Equal(t, "it3", TitleFirstLetters("It", 5))
}

func TestCallCode(t *testing.T) {
	assert.Equal(t, "A946d", CallCode("Assis", "Dom Casmurro", nil))

	// A collision extends the title suffix until a free code appears.
	taken := map[string]bool{"A946d": true, "A946do": true}
	code := CallCode("Assis", "Dom Casmurro", func(c string) bool { return taken[c] })
	assert.Equal(t, "A946dom", code)
}
