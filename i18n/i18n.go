// Package i18n translates garbanzo's own user-facing messages.
//
// It wraps gotext with T() and N() helpers. Catalogs are embedded from
// locales/{lang}/LC_MESSAGES/garbanzo.po and selected by Init().
//
//	i18n.Init("")  // LANGUAGE, LC_ALL, LC_MESSAGES, LANG
//	fmt.Println(i18n.T("Nothing to push"))
//	fmt.Println(i18n.N("%d branch updated", "%d branches updated", n))
package i18n

import (
	"embed"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

// domain is the gettext domain name for garbanzo.
const domain = "garbanzo"

var (
	po   *gotext.Locale
	lang string
)

// Init selects the message catalog. If code is empty, it is detected from
// LANGUAGE, LC_ALL, LC_MESSAGES and LANG, in that order.
//
// Init should be called once at program startup, before any T() or N() calls.
func Init(code string) {
	if code == "" {
		code = detectLanguage()
	}
	lang = code

	po = gotext.NewLocaleFSWithPath(code, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the language passed to or detected by Init.
func Lang() string {
	return lang
}

// Available returns the languages that have an embedded catalog.
func Available() []string {
	entries, err := fs.ReadDir(locales, "locales")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := fs.Stat(locales, "locales/"+e.Name()+"/LC_MESSAGES/"+domain+".po"); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// T translates a string, or returns it unchanged when no translation exists.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates a string with plural forms.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage follows GNU gettext: LANGUAGE > LC_ALL > LC_MESSAGES > LANG.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		// LANGUAGE can be a colon-separated list
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		// "ru_RU.UTF-8" -> "ru_RU"
		if idx := strings.IndexByte(val, '.'); idx >= 0 {
			val = val[:idx]
		}
		if val == "C" || val == "POSIX" || val == "" {
			continue
		}
		return val
	}
	return "en"
}
