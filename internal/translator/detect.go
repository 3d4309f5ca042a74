package translator

import "github.com/abadojack/whatlanggo"

// AutoDetect asks the translation service to detect the source itself.
const AutoDetect = "auto"

// DetectSource guesses the ISO 639-1 code of text. Short or ambiguous input
// yields AutoDetect.
func DetectSource(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return AutoDetect
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return AutoDetect
	}
	return code
}
