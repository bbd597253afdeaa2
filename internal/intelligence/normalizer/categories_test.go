package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		"":                                "outros",
		"   ":                             "outros",
		"Hemograma":                       "hematologico",
		"SÉRIE VERMELHA":                  "hematologico",
		"serie vermelha":                  "hematologico",
		"PERFIL LIPÍDICO":                 "metabolico",
		"lipidico":                        "metabolico",
		"Função Renal":                    "renal",
		"FUNÇÃO TIREOIDEANA":              "hormonal",
		"IONOGRAMA E BIOQUÍMICA DO CÁLCIO": "ions",
		"metais pesados":                  "vitaminas_minerais",
		"Marcadores Inflamatórios":        "marcadores_inflamatorios",
		"próstata":                        "marcadores_prostaticos",
		"hematologico":                    "hematologico",
		"Categoria Inédita":               "categoria inedita",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCategory(in), "NormalizeCategory(%q)", in)
	}
}

func TestNormalizeCategory_KeysAreFixedPoints(t *testing.T) {
	for _, key := range SimplifiedCategories {
		assert.Equal(t, key, NormalizeCategory(key))
		assert.True(t, IsCategoryKey(key))
		assert.Contains(t, CategoryDisplayNames, key)
	}
}

func TestCategoryOrder(t *testing.T) {
	assert.Equal(t, 0, CategoryOrder("hematologico"))
	assert.Equal(t, 10, CategoryOrder("outros"))
	assert.Equal(t, 999, CategoryOrder("desconhecida"))
	assert.False(t, IsCategoryKey("desconhecida"))
}
