package language

import (
	"sort"
	"strings"
	"unicode"
)

// Language is a subtitle language known to the platform.
// Code is the canonical key used in card subtitle maps.
type Language struct {
	Code       string
	Name       string
	NativeName string
	Aliases    []string
	// Spaceless marks scripts written without word separators.
	Spaceless bool
}

// Languages maps canonical code -> Language.
var Languages = map[string]Language{
	"ar":      {Code: "ar", Name: "Arabic", NativeName: "العربية", Aliases: []string{"ara", "arabic"}},
	"bg":      {Code: "bg", Name: "Bulgarian", NativeName: "български", Aliases: []string{"bul"}},
	"bn":      {Code: "bn", Name: "Bengali", NativeName: "বাংলা", Aliases: []string{"ben", "bangla"}},
	"ca":      {Code: "ca", Name: "Catalan", NativeName: "català", Aliases: []string{"cat"}},
	"cs":      {Code: "cs", Name: "Czech", NativeName: "čeština", Aliases: []string{"cze", "ces"}},
	"da":      {Code: "da", Name: "Danish", NativeName: "dansk", Aliases: []string{"dan"}},
	"de":      {Code: "de", Name: "German", NativeName: "Deutsch", Aliases: []string{"ger", "deu", "de-de"}},
	"el":      {Code: "el", Name: "Greek", NativeName: "Ελληνικά", Aliases: []string{"gre", "ell"}},
	"en":      {Code: "en", Name: "English", NativeName: "English", Aliases: []string{"eng", "en-us", "en-gb", "english (us)", "english (uk)"}},
	"es":      {Code: "es", Name: "Spanish", NativeName: "español", Aliases: []string{"spa", "espanol"}},
	"es-ES":   {Code: "es-ES", Name: "Spanish (Spain)", NativeName: "español (España)", Aliases: []string{"es_es", "castilian", "spanish (es)", "spanish spain"}},
	"es-419":  {Code: "es-419", Name: "Spanish (Latin America)", NativeName: "español (Latinoamérica)", Aliases: []string{"es_la", "es-la", "es-mx", "latin american spanish", "spanish (latam)", "spanish latam", "spanish (mexico)"}},
	"et":      {Code: "et", Name: "Estonian", NativeName: "eesti", Aliases: []string{"est"}},
	"eu":      {Code: "eu", Name: "Basque", NativeName: "euskara", Aliases: []string{"baq", "eus"}},
	"fa":      {Code: "fa", Name: "Persian", NativeName: "فارسی", Aliases: []string{"per", "fas", "farsi"}},
	"fi":      {Code: "fi", Name: "Finnish", NativeName: "suomi", Aliases: []string{"fin"}},
	"fil":     {Code: "fil", Name: "Filipino", NativeName: "Filipino", Aliases: []string{"tl", "tagalog"}},
	"fr":      {Code: "fr", Name: "French", NativeName: "français", Aliases: []string{"fre", "fra", "fr-fr", "francais"}},
	"fr-CA":   {Code: "fr-CA", Name: "French (Canada)", NativeName: "français (Canada)", Aliases: []string{"fr_ca", "canadian french"}},
	"gl":      {Code: "gl", Name: "Galician", NativeName: "galego", Aliases: []string{"glg"}},
	"he":      {Code: "he", Name: "Hebrew", NativeName: "עברית", Aliases: []string{"iw", "heb"}},
	"hi":      {Code: "hi", Name: "Hindi", NativeName: "हिन्दी", Aliases: []string{"hin"}},
	"hr":      {Code: "hr", Name: "Croatian", NativeName: "hrvatski", Aliases: []string{"hrv"}},
	"hu":      {Code: "hu", Name: "Hungarian", NativeName: "magyar", Aliases: []string{"hun"}},
	"id":      {Code: "id", Name: "Indonesian", NativeName: "Bahasa Indonesia", Aliases: []string{"in", "ind", "bahasa"}},
	"is":      {Code: "is", Name: "Icelandic", NativeName: "íslenska", Aliases: []string{"ice", "isl"}},
	"it":      {Code: "it", Name: "Italian", NativeName: "italiano", Aliases: []string{"ita"}},
	"ja":      {Code: "ja", Name: "Japanese", NativeName: "日本語", Aliases: []string{"jp", "jpn", "ja-jp"}, Spaceless: true},
	"ko":      {Code: "ko", Name: "Korean", NativeName: "한국어", Aliases: []string{"kr", "kor", "ko-kr"}},
	"lt":      {Code: "lt", Name: "Lithuanian", NativeName: "lietuvių", Aliases: []string{"lit"}},
	"lv":      {Code: "lv", Name: "Latvian", NativeName: "latviešu", Aliases: []string{"lav"}},
	"ms":      {Code: "ms", Name: "Malay", NativeName: "Bahasa Melayu", Aliases: []string{"may", "msa", "melayu"}},
	"nl":      {Code: "nl", Name: "Dutch", NativeName: "Nederlands", Aliases: []string{"dut", "nld", "flemish"}},
	"no":      {Code: "no", Name: "Norwegian", NativeName: "norsk", Aliases: []string{"nb", "nor", "nob", "bokmal", "bokmål"}},
	"pl":      {Code: "pl", Name: "Polish", NativeName: "polski", Aliases: []string{"pol"}},
	"pt":      {Code: "pt", Name: "Portuguese", NativeName: "português", Aliases: []string{"por", "portugues"}},
	"pt-BR":   {Code: "pt-BR", Name: "Portuguese (Brazil)", NativeName: "português (Brasil)", Aliases: []string{"pt_br", "ptbr", "brazilian portuguese", "portuguese (br)"}},
	"pt-PT":   {Code: "pt-PT", Name: "Portuguese (Portugal)", NativeName: "português (Portugal)", Aliases: []string{"pt_pt", "european portuguese", "portuguese (pt)"}},
	"ro":      {Code: "ro", Name: "Romanian", NativeName: "română", Aliases: []string{"rum", "ron"}},
	"ru":      {Code: "ru", Name: "Russian", NativeName: "русский", Aliases: []string{"rus"}},
	"sk":      {Code: "sk", Name: "Slovak", NativeName: "slovenčina", Aliases: []string{"slo", "slk"}},
	"sl":      {Code: "sl", Name: "Slovenian", NativeName: "slovenščina", Aliases: []string{"slv", "slovene"}},
	"sr":      {Code: "sr", Name: "Serbian", NativeName: "српски", Aliases: []string{"srp"}},
	"sv":      {Code: "sv", Name: "Swedish", NativeName: "svenska", Aliases: []string{"swe"}},
	"sw":      {Code: "sw", Name: "Swahili", NativeName: "Kiswahili", Aliases: []string{"swa"}},
	"ta":      {Code: "ta", Name: "Tamil", NativeName: "தமிழ்", Aliases: []string{"tam"}},
	"te":      {Code: "te", Name: "Telugu", NativeName: "తెలుగు", Aliases: []string{"tel"}},
	"th":      {Code: "th", Name: "Thai", NativeName: "ไทย", Aliases: []string{"tha"}, Spaceless: true},
	"tr":      {Code: "tr", Name: "Turkish", NativeName: "Türkçe", Aliases: []string{"tur"}},
	"uk":      {Code: "uk", Name: "Ukrainian", NativeName: "українська", Aliases: []string{"ukr"}},
	"ur":      {Code: "ur", Name: "Urdu", NativeName: "اردو", Aliases: []string{"urd"}},
	"vi":      {Code: "vi", Name: "Vietnamese", NativeName: "Tiếng Việt", Aliases: []string{"vie", "vn"}},
	"yue":     {Code: "yue", Name: "Cantonese", NativeName: "粵語", Aliases: []string{"zh-hk", "zh_hk", "cantonese (hong kong)"}, Spaceless: true},
	"zh-Hans": {Code: "zh-Hans", Name: "Chinese (Simplified)", NativeName: "简体中文", Aliases: []string{"zh", "zh-cn", "zh_cn", "zho", "chi", "chinese", "mandarin", "中文", "simplified chinese"}, Spaceless: true},
	"zh-Hant": {Code: "zh-Hant", Name: "Chinese (Traditional)", NativeName: "繁體中文", Aliases: []string{"zh-tw", "zh_tw", "zh_trad", "traditional chinese"}, Spaceless: true},
}

var (
	aliasIndex map[string]string
	// aliasConflicts records aliases claimed by more than one code; must stay empty.
	aliasConflicts []string
)

func init() {
	aliasIndex = make(map[string]string)
	add := func(alias, code string) {
		key := Normalize(alias)
		if key == "" {
			return
		}
		if prev, ok := aliasIndex[key]; ok && prev != code {
			aliasConflicts = append(aliasConflicts, key+": "+prev+" vs "+code)
			return
		}
		aliasIndex[key] = code
	}
	for code, lang := range Languages {
		add(code, code)
		add(lang.Name, code)
		add(lang.NativeName, code)
		for _, a := range lang.Aliases {
			add(a, code)
		}
	}
}

var decorationSuffixes = []string{" subtitles", " subtitle", " subs", " sub", " text", " translation"}

// Normalize folds an alias to its lookup key: lower case, '-' for '_',
// single spaces, "name(region)" spaced as "name (region)", and trailing
// decoration words like "subtitle" removed.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "\"'[]{}:")
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, "(", " (")
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
	for _, suf := range decorationSuffixes {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suf))
			break
		}
	}
	return s
}

// Lookup resolves any known alias (code, name, native name, variant) to its Language.
func Lookup(alias string) (Language, bool) {
	code, ok := aliasIndex[Normalize(alias)]
	if !ok {
		return Language{}, false
	}
	return Languages[code], true
}

// Canonical returns the canonical code for alias, or "" when unknown.
func Canonical(alias string) string {
	lang, ok := Lookup(alias)
	if !ok {
		return ""
	}
	return lang.Code
}

// GetLanguage returns the language for an exact canonical code.
func GetLanguage(code string) (Language, bool) {
	lang, ok := Languages[code]
	return lang, ok
}

// Base returns the primary subtag of a code ("es-419" -> "es", "zh-Hant" -> "zh").
func Base(code string) string {
	if i := strings.IndexByte(code, '-'); i >= 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}

// SameFamily reports whether two canonical codes share a primary subtag.
func SameFamily(a, b string) bool {
	return a != "" && b != "" && Base(a) == Base(b)
}

// IsSpaceless reports whether text in code is written without spaces between words.
func IsSpaceless(code string) bool {
	return Languages[code].Spaceless
}

// Supported returns all languages sorted by Name then Code.
func Supported() []Language {
	out := make([]Language, 0, len(Languages))
	for _, v := range Languages {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Code < out[j].Code
	})
	return out
}
