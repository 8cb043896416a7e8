// Package format renders display strings for post metadata: publication
// dates and reading-time labels, in a fixed set of locales.
package format

import "strings"

// Locale holds the month abbreviations and UI labels for one language.
type Locale struct {
	Tag      string
	Months   [12]string
	FastRead string
	Minutes  string
	Hours    string
	LoadMore string
	Loading  string
	Retry    string
}

var (
	English = Locale{
		Tag:      "en",
		Months:   [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		FastRead: "fast read",
		Minutes:  "min",
		Hours:    "hours",
		LoadMore: "Load more posts",
		Loading:  "Loading...",
		Retry:    "Could not load more posts. Try again",
	}

	BrazilianPortuguese = Locale{
		Tag:      "pt-BR",
		Months:   [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
		FastRead: "Rápida leitura",
		Minutes:  "min",
		Hours:    "horas",
		LoadMore: "Carregar mais posts",
		Loading:  "Carregando...",
		Retry:    "Não foi possível carregar mais posts. Tentar novamente",
	}
)

// LookupLocale returns the locale for tag, falling back to English.
// Matching ignores case and accepts "_" in place of "-".
func LookupLocale(tag string) Locale {
	t := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
	switch t {
	case "pt-br", "pt":
		return BrazilianPortuguese
	}
	return English
}
