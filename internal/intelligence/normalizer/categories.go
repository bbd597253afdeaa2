package normalizer

import (
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// SimplifiedCategories are the category keys in display order.
var SimplifiedCategories = []string{
	"hematologico",
	"metabolico",
	"hepatico",
	"renal",
	"ions",
	"hormonal",
	"vitaminas_minerais",
	"marcadores_inflamatorios",
	"marcadores_musculares",
	"marcadores_prostaticos",
	biomarker.CategoryOther,
}

// CategoryDisplayNames are the human labels of the category keys.
var CategoryDisplayNames = map[string]string{
	"hematologico":             "Hematológico",
	"metabolico":               "Metabólico",
	"hepatico":                 "Hepático",
	"renal":                    "Renal",
	"ions":                     "Íons",
	"hormonal":                 "Hormonal",
	"vitaminas_minerais":       "Vitaminas e Minerais",
	"marcadores_inflamatorios": "Marcadores Inflamatórios",
	"marcadores_musculares":    "Marcadores Musculares",
	"marcadores_prostaticos":   "Marcadores Prostáticos",
	biomarker.CategoryOther:    "Outros",
}

// categoryAliases maps free-form category names, including the section
// headings of the laboratory specification file, onto category keys.  Keys are
// folded at init so accented and unaccented spellings share one entry.
var categoryAliases = map[string]string{
	"hemograma":          "hematologico",
	"hematologia":        "hematologico",
	"sangue":             "hematologico",
	"série vermelha":     "hematologico",
	"série branca":       "hematologico",
	"série plaquetária":  "hematologico",
	"eritrograma":        "hematologico",
	"leucograma":         "hematologico",
	"eletroforese de proteinas plasmáticas": "hematologico",
	"beta 2 microglobulina:":                "hematologico",

	"metabolismo":            "metabolico",
	"lipídico":               "metabolico",
	"perfil lipídico":        "metabolico",
	"glicemia":               "metabolico",
	"bioquímica":             "metabolico",
	"risco cardiovascular":   "metabolico",
	"fator cardiovascular":   "metabolico",
	"cardiovascular":         "metabolico",
	"glicemia e diabetes":    "metabolico",
	"metabolismo da glicose": "metabolico",
	"metabolismo glicídico":  "metabolico",
	"avaliação do perfil glicêmico e insulinêmico": "metabolico",
	"concentração de partículas ldl":               "metabolico",
	"tamanho do pico de ldl":                       "metabolico",

	"fígado":          "hepatico",
	"função hepática": "hepatico",
	"tgp /alt  - h<58 m<41": "hepatico",

	"rim":              "renal",
	"rins":             "renal",
	"função renal":     "renal",
	"exames de urina":  "renal",

	"eletrólitos": "ions",
	"íons":        "ions",
	"ionograma":   "ions",
	"ionograma e bioquímica do cálcio": "ions",

	"hormônio":                  "hormonal",
	"hormônios":                 "hormonal",
	"tireóide":                  "hormonal",
	"tireoide":                  "hormonal",
	"hormônios sexuais":         "hormonal",
	"hormônios tireoidianos":    "hormonal",
	"função tireoideana":        "hormonal",
	"hormônios sexuais e outros hormônios": "hormonal",
	"cortisol salivar acordar":             "hormonal",
	"cortisol pos dexa vr<1,8":             "hormonal",

	"vitamina":              "vitaminas_minerais",
	"vitaminas":             "vitaminas_minerais",
	"mineral":               "vitaminas_minerais",
	"minerais":              "vitaminas_minerais",
	"ferro":                 "vitaminas_minerais",
	"minerais e vitaminas":  "vitaminas_minerais",
	"vitaminas e minerais":  "vitaminas_minerais",
	"metabolismo do ferro":  "vitaminas_minerais",
	"metais":                "vitaminas_minerais",
	"metais pesados":        "vitaminas_minerais",

	"inflamação":                     "marcadores_inflamatorios",
	"inflamatório":                   "marcadores_inflamatorios",
	"marcadores inflamatórios":       "marcadores_inflamatorios",
	"imunologia":                     "marcadores_inflamatorios",
	"fatores de risco cardiovascular": "marcadores_inflamatorios",
	"anticorpos anti mitocôndria":    "marcadores_inflamatorios",
	"kd abc score prot c reat":       "marcadores_inflamatorios",

	"músculo":               "marcadores_musculares",
	"músculos":              "marcadores_musculares",
	"muscular":              "marcadores_musculares",
	"marcadores musculares": "marcadores_musculares",

	"próstata":               "marcadores_prostaticos",
	"prostático":             "marcadores_prostaticos",
	"marcadores prostáticos": "marcadores_prostaticos",

	"marcadores tumorais e outros": biomarker.CategoryOther,
	"kd abc score albumina":        biomarker.CategoryOther,
	"densitometria óssea":          biomarker.CategoryOther,
	"exames de imagem":             biomarker.CategoryOther,
	"cintilografia miocardica":     biomarker.CategoryOther,
	"ultrassom endovaginal":        biomarker.CategoryOther,
}

var (
	foldedAliases map[string]string
	categoryIndex map[string]int
)

func init() {
	foldedAliases = make(map[string]string, len(categoryAliases))
	for raw, key := range categoryAliases {
		foldedAliases[Fold(raw)] = key
	}
	categoryIndex = make(map[string]int, len(SimplifiedCategories))
	for i, key := range SimplifiedCategories {
		categoryIndex[key] = i
	}
}

// NormalizeCategory maps a raw category name onto a category key.  Names with
// no known alias come back folded.
func NormalizeCategory(raw string) string {
	folded := Fold(raw)
	if folded == "" {
		return biomarker.CategoryOther
	}
	if key, ok := foldedAliases[folded]; ok {
		return key
	}
	return folded
}

// IsCategoryKey reports whether key is one of SimplifiedCategories.
func IsCategoryKey(key string) bool {
	_, ok := categoryIndex[key]
	return ok
}

// CategoryOrder returns the display position of key, or 999 when unknown.
func CategoryOrder(key string) int {
	if i, ok := categoryIndex[key]; ok {
		return i
	}
	return 999
}
