package locales

import (
	"embed"
	"encoding/json"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

//go:embed *.json
var localeFS embed.FS

var (
	bundle          *i18n.Bundle
	defaultLanguage language.Tag // Store the parsed default language tag
)

// Init initializes the i18n bundle by loading language files and setting the default language.
func Init(defaultLangCode string) {
	var err error
	defaultLanguage, err = language.Parse(defaultLangCode)
	if err != nil {
		log.Warn().Err(err).Str("lang", defaultLangCode).Msg("Failed to parse default language code. Falling back to English.")
		defaultLanguage = language.English
	}

	bundle = i18n.NewBundle(defaultLanguage)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := localeFS.ReadDir(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read embedded locales directory")
	}

	loadedFiles := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, file.Name()); err != nil {
			log.Warn().Err(err).Str("file", file.Name()).Msg("Failed to load message file")
			continue
		}
		log.Debug().Str("file", file.Name()).Msg("Loaded message file")
		loadedFiles++
	}
	if loadedFiles == 0 {
		log.Fatal().Msg("No message files loaded from locales/")
	}
	log.Info().Int("files", loadedFiles).Str("default_language", defaultLanguage.String()).Msg("i18n bundle initialized")
}

// GetDefaultLanguageTag returns the configured default language tag.
func GetDefaultLanguageTag() language.Tag {
	if bundle == nil {
		log.Panic().Msg("Attempted to get default language tag before i18n bundle initialization.")
	}
	return defaultLanguage
}

// NewLocalizer creates a localizer for the given language preferences.
// It takes language tags (e.g., "en", "ru") or Accept-Language header string.
func NewLocalizer(langPrefs ...string) *i18n.Localizer {
	if bundle == nil {
		log.Panic().Msg("Attempted to create localizer before i18n bundle initialization.")
	}
	return i18n.NewLocalizer(bundle, langPrefs...)
}

// GetMessage retrieves and formats a message by its ID using the provided localizer.
// templateData: Optional map for template variables (e.g., map[string]interface{}{"Mention": "..."}).
// pluralCount: Optional pointer to an int for pluralization rules.
func GetMessage(localizer *i18n.Localizer, msgID string, templateData map[string]interface{}, pluralCount *int) string {
	if templateData == nil {
		templateData = map[string]interface{}{}
	}
	config := &i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: templateData,
	}
	if pluralCount != nil {
		config.PluralCount = *pluralCount
	}

	localizedMsg, err := localizer.Localize(config)
	if err != nil {
		log.Error().Err(err).Str("message_id", msgID).Msg("Failed to localize message. Falling back to English.")

		englishLocalizer := i18n.NewLocalizer(bundle, language.English.String())
		fallbackMsg, fallbackErr := englishLocalizer.Localize(config)
		if fallbackErr == nil {
			return fallbackMsg
		}

		log.Error().Str("message_id", msgID).Msg("Failed to localize message in English fallback as well. Returning ID.")
		return msgID
	}
	return localizedMsg
}
