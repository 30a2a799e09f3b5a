package translation

import (
	"strings"

	"github.com/leonelquinteros/gotext"
)

const Domain = "default"

// Setup loads <dir>/<lang>/default.po; unknown languages fall back to the msgids
func Setup(dir, lang string) string {
	gotext.Configure(dir, strings.ToLower(strings.TrimSpace(lang)), Domain)
	return GetLanguage()
}

func GetLanguage() string {
	lang := gotext.GetLanguage()

	if lang == "und" || lang == "" {
		return "en"
	}

	return lang
}

func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
