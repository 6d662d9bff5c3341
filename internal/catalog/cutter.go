package catalog

import (
	"sort"
	"strconv"
	"strings"
)

// Condensed Cutter-Sanborn table. Entries must stay sorted by name; lookup
// picks the entry at the insertion point of the normalised surname, the same
// way the printed table is used.
var cutterNames = []string{
	"Aar", "Ab", "Ad", "Ag", "Al", "Am", "An", "Ar", "As", "Av",
	"Ba", "Be", "Bi", "Bo", "Br", "Bu", "Ca", "Ce", "Ch", "Ci",
	"Co", "Cr", "Cu", "Da", "De", "Di", "Do", "Dr", "Du", "Ea",
	"Ed", "El", "Em", "Er", "Es", "Fa", "Fe", "Fi", "Fo", "Fr",
	"Fu", "Ga", "Ge", "Gi", "Go", "Gr", "Gu", "Ha", "He", "Hi",
	"Ho", "Hu", "Ia", "Im", "In", "Is", "Ja", "Je", "Jo", "Ju",
	"Ka", "Ke", "Ki", "Ko", "Ku", "La", "Le", "Li", "Lo", "Lu",
	"Ma", "Me", "Mi", "Mo", "Mu", "Na", "Ne", "Ni", "No", "Nu",
	"Oa", "Ol", "Or", "Os", "Pa", "Pe", "Pi", "Po", "Pr", "Pu",
	"Qu", "Ra", "Re", "Ri", "Ro", "Ru", "Sa", "Sc", "Se", "Si",
	"So", "St", "Su", "Ta", "Te", "Th", "Ti", "To", "Tr", "Tu",
	"Ua", "Ul", "Un", "Ur", "Va", "Ve", "Vi", "Vo", "Wa", "We",
	"Wi", "Wo", "Wu", "Xa", "Ya", "Yo", "Za", "Ze", "Zo", "Zu",
}

var cutterCodes = []string{
	"111", "118", "121", "145", "316", "494", "532", "661", "799", "946",
	"112", "365", "582", "662", "734", "868", "112", "388", "473", "565",
	"652", "779", "894", "111", "278", "536", "631", "759", "812", "112",
	"199", "375", "533", "668", "746", "112", "312", "448", "562", "798",
	"955", "111", "293", "453", "598", "677", "925", "111", "356", "528",
	"678", "885", "112", "475", "562", "785", "111", "454", "662", "925",
	"111", "251", "475", "682", "962", "111", "433", "693", "795", "926",
	"111", "491", "618", "693", "895", "111", "353", "577", "739", "964",
	"112", "449", "633", "798", "111", "345", "617", "743", "898", "976",
	"111", "111", "251", "484", "627", "895", "111", "265", "447", "573",
	"676", "775", "939", "111", "259", "364", "443", "629", "768", "926",
	"112", "357", "565", "725", "111", "426", "662", "945", "111", "361",
	"639", "838", "959", "112", "111", "537", "111", "361", "724", "942",
}

// Cutter returns the cutter number for an author surname.
func Cutter(surname string) string {
	name := Unaccent(surname)
	i := sort.SearchStrings(cutterNames, name)
	if i >= len(cutterCodes) {
		i = len(cutterCodes) - 1
	}
	return cutterCodes[i]
}

// Leading words dropped when deriving title letters for the call number.
var articles = map[string]struct{}{
	"a": {}, "o": {}, "as": {}, "os": {},
	"um": {}, "uma": {}, "uns": {}, "umas": {},
	"de": {}, "da": {}, "do": {}, "das": {}, "dos": {},
	"the": {}, "an": {}, "la": {}, "le": {}, "el": {}, "los": {}, "las": {},
}

// TitleFirstLetters extracts the first n letters of the title, skipping
// leading articles. When the title is shorter than n the missing count is
// appended so codes stay unique.
func TitleFirstLetters(title string, n int) string {
	words := strings.Fields(title)
	for len(words) > 0 {
		if _, ok := articles[strings.ToLower(words[0])]; !ok {
			break
		}
		words = words[1:]
	}

	letters := []rune(strings.ToLower(Unaccent(strings.Join(words, ""))))
	if n > len(letters) {
		return string(letters) + strconv.Itoa(n-len(letters))
	}
	return string(letters[:n])
}

// CallCode derives the cutter call code for a book: author initial, cutter
// number, then as many title letters as needed for exists to report a free
// code.
func CallCode(authorLastName, title string, exists func(code string) bool) string {
	cutcode := Cutter(authorLastName)
	initial := ""
	if runes := []rune(Unaccent(authorLastName)); len(runes) > 0 {
		initial = strings.ToUpper(string(runes[0]))
	}

	n := 1
	for {
		code := initial + cutcode + TitleFirstLetters(title, n)
		if exists == nil || !exists(code) {
			return code
		}
		n++
	}
}
