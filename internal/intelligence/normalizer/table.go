package normalizer

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// TableEntry is a row of the built-in normalization table.
type TableEntry struct {
	NormalizedName string `json:"normalized_name"`
	Category       string `json:"category,omitempty"`
	Unit           string `json:"unit,omitempty"`
}

type tableGroup struct {
	name     string
	category string
	unit     string
	labels   []string
}

// staticTable lists common laboratory labels, Portuguese and English, grouped
// by the name they normalize to.
var staticTable = []tableGroup{
	// metabolico
	{"Glicemia Jejum", "metabolico", "mg/dL", []string{"glicemia jejum", "glicose", "glicose jejum", "glicemia", "glucose", "glicemia de jejum", "glicose em jejum", "glucose fasting"}},
	{"Frutosamina", "metabolico", "μmol/L", []string{"frutosamina", "fructosamine"}},
	{"Peptídeo C", "metabolico", "ng/mL", []string{"peptideo c", "c-peptide", "c peptide"}},
	{"HbA1c", "metabolico", "%", []string{"hba1c", "hemoglobina glicada", "a1c", "hemoglobina glicosilada", "glicohemoglobina"}},
	{"Insulina", "metabolico", "μUI/mL", []string{"insulina", "insulina basal", "insulinemia"}},
	{"HOMA-IR", "metabolico", "", []string{"homa ir", "homa-ir", "homa index", "indice homa"}},
	{"Microalbuminúria", "metabolico", "mg/g", []string{"microalb rel", "microalbuminuria"}},
	{"Lipoproteína (a)", "metabolico", "mg/dL", []string{"lp(a)", "lipoproteina a"}},
	{"Apolipoproteína A1", "metabolico", "mg/dL", []string{"apo a1", "apolipoproteina a1", "apoa1"}},
	{"Apolipoproteína B", "metabolico", "mg/dL", []string{"apo b", "apolipoproteina b", "apob"}},
	{"Colesterol Total", "metabolico", "mg/dL", []string{"ct", "colesterol total", "col total", "total cholesterol", "colesterol"}},
	{"LDL", "metabolico", "mg/dL", []string{"ldl", "colesterol ldl", "ldl colesterol", "ldl-c"}},
	{"VLDL", "metabolico", "mg/dL", []string{"vldl", "vldl colesterol", "vldl-c"}},
	{"HDL", "metabolico", "mg/dL", []string{"hdl", "colesterol hdl", "hdl colesterol", "hdl-c"}},
	{"Triglicérides", "metabolico", "mg/dL", []string{"tg", "triglicerides", "triglicerideos", "triglycerides"}},

	// marcadores_inflamatorios
	{"Fibrinogênio", "marcadores_inflamatorios", "mg/dL", []string{"fibrinogenio", "fibrinogen"}},
	{"Ferritina", "marcadores_inflamatorios", "ng/mL", []string{"ferritina", "ferritin", "ferritina serica"}},
	{"PCR Ultra Sensível", "marcadores_inflamatorios", "mg/L", []string{"pcr ultra sensivel", "pcr", "proteina c reativa", "pcr ultrassensivel", "hs-crp", "crp"}},
	{"VHS", "marcadores_inflamatorios", "mm/h", []string{"vhs", "velocidade de hemossedimentacao", "esr", "vs"}},
	{"Homocisteína", "marcadores_inflamatorios", "μmol/L", []string{"homocisteina", "homocysteine"}},
	{"IL-6", "marcadores_inflamatorios", "pg/mL", []string{"il-6", "interleucina 6"}},
	{"IL-8", "marcadores_inflamatorios", "pg/mL", []string{"il-8", "interleucina 8"}},

	// hematologico
	{"Hemoglobina", "hematologico", "g/dL", []string{"hemoglobina", "hb", "hgb"}},
	{"Hemácias", "hematologico", "M/µL", []string{"hemacias", "eritrocitos", "rbc"}},
	{"Hematócrito", "hematologico", "%", []string{"hematocrito", "ht", "hct"}},
	{"VCM", "hematologico", "fL", []string{"vcm", "volume corpuscular medio"}},
	{"HCM", "hematologico", "pg", []string{"hcm", "hemoglobina corpuscular media"}},
	{"CHCM", "hematologico", "g/dL", []string{"chcm", "concentracao hemoglobina corpuscular media"}},
	{"RDW", "hematologico", "%", []string{"rdw", "rdw-cv"}},
	{"Leucócitos", "hematologico", "/µL", []string{"leucocitos", "wbc"}},
	{"Neutrófilos", "hematologico", "/µL", []string{"neutrofilos"}},
	{"Segmentados", "hematologico", "/µL", []string{"segmentados", "neutrofilos segmentados"}},
	{"Bastonetes", "hematologico", "/µL", []string{"bastonetes"}},
	{"Linfócitos", "hematologico", "/µL", []string{"linfocitos"}},
	{"Monócitos", "hematologico", "/µL", []string{"monocitos", "mono"}},
	{"Eosinófilos", "hematologico", "/µL", []string{"eosinofilos", "eos"}},
	{"Basófilos", "hematologico", "/µL", []string{"basofilos", "baso"}},
	{"Plaquetas", "hematologico", "/µL", []string{"plaquetas", "plt", "platelet"}},
	{"Beta-2 Microglobulina", "hematologico", "mg/L", []string{"beta 2 microglobulina", "b2m"}},
	{"G6PD", "hematologico", "U/g Hb", []string{"g6pd", "glicose 6 fosfato desidrogenase"}},

	// renal
	{"Uréia", "renal", "mg/dL", []string{"ureia"}},
	{"Creatinina", "renal", "mg/dL", []string{"creatinina", "creat", "cr", "creatinine"}},
	{"TFG CKD-EPI", "renal", "mL/min/1.73m²", []string{"tfg", "tfg ckd-epi", "egfr"}},

	// hepatico
	{"Ácido Úrico", "hepatico", "mg/dL", []string{"acido urico"}},
	{"TGO", "hepatico", "U/L", []string{"tgo", "ast"}},
	{"TGP", "hepatico", "U/L", []string{"tgp", "alt"}},
	{"Gama GT", "hepatico", "U/L", []string{"gama gt", "ggt"}},
	{"Fosfatase Alcalina", "hepatico", "U/L", []string{"fosfatase alcalina"}},
	{"Bilirrubina Total", "hepatico", "mg/dL", []string{"bilirrubina total"}},
	{"Bilirrubina Direta", "hepatico", "mg/dL", []string{"bilirrubina direta"}},
	{"Bilirrubina Indireta", "hepatico", "mg/dL", []string{"bilirrubina indireta"}},
	{"Albumina", "hepatico", "g/dL", []string{"albumina"}},
	{"Proteínas Totais", "hepatico", "g/dL", []string{"proteinas totais", "proteina total"}},
	{"RNI", "hepatico", "", []string{"rni", "inr"}},
	{"Tempo de Protrombina", "hepatico", "s", []string{"tempo de protrombina", "tp"}},

	// hormonal
	{"TSH", "hormonal", "µUI/mL", []string{"tsh"}},
	{"T3 Livre", "hormonal", "pg/mL", []string{"t3 livre"}},
	{"T4 Livre", "hormonal", "ng/dL", []string{"t4 livre"}},
	{"Cortisol", "hormonal", "µg/dL", []string{"cortisol"}},
	{"Testosterona Total", "hormonal", "ng/dL", []string{"testosterona total"}},
	{"Testosterona Livre", "hormonal", "pg/mL", []string{"testosterona livre"}},
	{"Estradiol", "hormonal", "pg/mL", []string{"estradiol"}},
	{"Progesterona", "hormonal", "ng/mL", []string{"progesterona"}},
	{"Prolactina", "hormonal", "ng/mL", []string{"prolactina"}},
	{"FSH", "hormonal", "mUI/mL", []string{"fsh"}},
	{"LH", "hormonal", "mUI/mL", []string{"lh"}},
	{"Paratormônio (PTH)", "hormonal", "pg/mL", []string{"paratormonio", "pth"}},
	{"Sulfato de Dehidroepiandrosterona (DHEA-S)", "hormonal", "µg/dL", []string{"dhea-s", "sulfato de dehidroepiandrosterona"}},

	// vitaminas_minerais
	{"Vitamina D (25-OH)", "vitaminas_minerais", "ng/mL", []string{"vitamina d", "vitamina d (25-oh)", "25-hidroxivitamina d", "25 hidroxivitamina d"}},
	{"Vitamina B12", "vitaminas_minerais", "pg/mL", []string{"vitamina b12", "cobalamina"}},
	{"Ácido Fólico", "vitaminas_minerais", "ng/mL", []string{"acido folico", "folato"}},
	{"Ferro Sérico", "vitaminas_minerais", "µg/dL", []string{"ferro", "ferro serico"}},
	{"Transferrina", "vitaminas_minerais", "mg/dL", []string{"transferrina"}},
	{"Índice de Saturação da Transferrina", "vitaminas_minerais", "%", []string{"indice de saturacao da transferrina", "saturacao da transferrina", "istf"}},
	{"Zinco", "vitaminas_minerais", "µg/dL", []string{"zinco"}},
	{"Selênio", "vitaminas_minerais", "µg/L", []string{"selenio"}},
	{"Chumbo", "vitaminas_minerais", "µg/dL", []string{"chumbo", "pb"}},
	{"Mercúrio", "vitaminas_minerais", "µg/L", []string{"mercurio", "hg"}},

	// ions
	{"Cálcio", "ions", "mg/dL", []string{"calcio"}},
	{"Cálcio Iônico", "ions", "mmol/L", []string{"calcio ionico"}},
	{"Magnésio", "ions", "mg/dL", []string{"magnesio"}},
	{"Fósforo", "ions", "mg/dL", []string{"fosforo"}},
	{"Potássio", "ions", "mEq/L", []string{"potassio"}},
	{"Sódio", "ions", "mEq/L", []string{"sodio"}},
	{"Osteocalcina", "ions", "ng/mL", []string{"osteocalcina", "osteocalcin"}},

	// marcadores_musculares
	{"CPK", "marcadores_musculares", "U/L", []string{"cpk", "creatina fosfoquinase", "ck"}},
	{"LDH", "marcadores_musculares", "U/L", []string{"ldh", "desidrogenase latica"}},

	// marcadores_prostaticos
	{"PSA Total", "marcadores_prostaticos", "ng/mL", []string{"psa total", "psa"}},
	{"PSA Livre", "marcadores_prostaticos", "ng/mL", []string{"psa livre"}},

	// outros
	{"CEA", "outros", "ng/mL", []string{"cea", "antigeno carcinoembrionario"}},
	{"CA 125", "outros", "U/mL", []string{"ca 125", "ca125"}},
	{"CA 19-9", "outros", "U/mL", []string{"ca 19-9", "ca19-9"}},
	{"Alfafetoproteína", "outros", "ng/mL", []string{"alfafetoproteina", "afp"}},
	{"FAN", "outros", "", []string{"fan", "fator antinucleo", "ana"}},
	{"Fator Reumatoide", "outros", "UI/mL", []string{"fator reumatoide", "fr"}},
	{"HBsAg", "outros", "", []string{"hbsag", "antigeno australia"}},
	{"Anti-HCV", "outros", "", []string{"anti-hcv", "hcv"}},
	{"Urina Rotina", "outros", "", []string{"urina rotina", "eas", "urina tipo 1"}},
	{"Densitometria Óssea", "outros", "", []string{"densitometria ossea", "dexa"}},
}

var (
	tableByKey map[string]TableEntry
	// tableWordKeys are keys eligible for whole-word search, longest first.
	tableWordKeys []string
)

func init() {
	tableByKey = make(map[string]TableEntry, len(staticTable)*4)
	for _, g := range staticTable {
		entry := TableEntry{NormalizedName: g.name, Category: g.category, Unit: g.unit}
		for _, label := range g.labels {
			tableByKey[Fold(label)] = entry
		}
	}
	for key := range tableByKey {
		if utf8.RuneCountInString(key) > 2 {
			tableWordKeys = append(tableWordKeys, key)
		}
	}
	sort.Slice(tableWordKeys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(tableWordKeys[i]), utf8.RuneCountInString(tableWordKeys[j])
		if li != lj {
			return li > lj
		}
		return tableWordKeys[i] < tableWordKeys[j]
	})
}

// LookupTable finds name in the built-in normalization table.  An exact folded
// match wins; otherwise the longest key appearing as a whole word wins.  Keys
// of two runes or fewer only match exactly, so "hb" never matches inside
// "shbg".
func LookupTable(name string) (TableEntry, bool) {
	key := Fold(name)
	if key == "" {
		return TableEntry{}, false
	}
	if e, ok := tableByKey[key]; ok {
		return e, true
	}
	for _, k := range tableWordKeys {
		if containsWord(key, k) {
			return tableByKey[k], true
		}
	}
	return TableEntry{}, false
}

// containsWord reports whether word occurs in s bounded by the string edges
// or spaces.
func containsWord(s, word string) bool {
	for from := 0; from <= len(s)-len(word); {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)
		if (start == 0 || s[start-1] == ' ') && (end == len(s) || s[end] == ' ') {
			return true
		}
		from = start + 1
	}
	return false
}
