package language

import "strings"

type entry struct {
	code2   string
	code3   []string
	display string
}

var known = []entry{
	{"en", []string{"eng"}, "English"},
	{"es", []string{"spa"}, "Spanish"},
	{"fr", []string{"fra", "fre"}, "French"},
	{"de", []string{"deu", "ger"}, "German"},
	{"it", []string{"ita"}, "Italian"},
	{"pt", []string{"por"}, "Portuguese"},
	{"ja", []string{"jpn"}, "Japanese"},
	{"ko", []string{"kor"}, "Korean"},
	{"zh", []string{"zho", "chi"}, "Chinese"},
	{"ru", []string{"rus"}, "Russian"},
	{"ar", []string{"ara"}, "Arabic"},
	{"hi", []string{"hin"}, "Hindi"},
	{"nl", []string{"nld", "dut"}, "Dutch"},
	{"pl", []string{"pol"}, "Polish"},
	{"sv", []string{"swe"}, "Swedish"},
	{"da", []string{"dan"}, "Danish"},
	{"no", []string{"nor"}, "Norwegian"},
	{"fi", []string{"fin"}, "Finnish"},
}

var index = buildIndex()

func buildIndex() map[string]*entry {
	m := make(map[string]*entry, len(known)*4)
	for i := range known {
		e := &known[i]
		m[e.code2] = e
		for _, c := range e.code3 {
			m[c] = e
		}
		m[strings.ToLower(e.display)] = e
	}
	return m
}

// Normalize maps a code or English language name to ISO 639-1. Empty input
// means auto-detect and returns "", true. Unknown two-letter codes pass
// through; anything else is reported as not ok.
func Normalize(value string) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", true
	}
	if e, ok := index[value]; ok {
		return e.code2, true
	}
	if len(value) == 2 {
		return value, true
	}
	return "", false
}

// DisplayName returns a readable name for code, "auto" for empty input, or
// the upper-cased code when unknown.
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "auto"
	}
	if e, ok := index[strings.ToLower(code)]; ok {
		return e.display
	}
	return strings.ToUpper(code)
}
