package composition

import "sort"

// DefaultLocale is used when a requested locale has no table
const DefaultLocale = "en"

// Messages maps each category to a user-facing message
type Messages map[Category]string

var messageTables = map[string]Messages{
	"en": {
		SearchingForSubject:    "Looking for something to shoot...",
		NoSubject:              "Object found! Try placing it by the rule of thirds",
		RuleOfThirdsViolation:  "Move the subject closer to the grid lines for a better composition",
		CenteredSubject:        "Try shifting the subject away from the center of the frame",
		TooSmall:               "Move closer to the subject",
		TooLarge:               "Step back a little from the subject",
		AspectSuggestPortrait:  "Turn the phone vertically for a better shot",
		AspectSuggestLandscape: "Turn the phone horizontally for a better shot",
		Optimal:                "Great composition! Ready to shoot",
	},
	"ru": {
		SearchingForSubject:    "Ищу объекты для съемки...",
		NoSubject:              "Объект найден! Попробуйте расположить его по правилу третей",
		RuleOfThirdsViolation:  "Переместите объект ближе к линиям сетки для лучшей композиции",
		CenteredSubject:        "Попробуйте сместить объект из центра кадра",
		TooSmall:               "Подойдите ближе к объекту съемки",
		TooLarge:               "Отойдите немного дальше от объекта",
		AspectSuggestPortrait:  "Поверните телефон вертикально для лучшего кадра",
		AspectSuggestLandscape: "Поверните телефон горизонтально для лучшего кадра",
		Optimal:                "Отличная композиция! Готов к съемке",
	},
}

// Message returns the text for category in locale.
// Missing entries fall back to DefaultLocale and then to the category identifier.
func Message(locale string, category Category) string {
	if table, ok := messageTables[locale]; ok {
		if msg, ok := table[category]; ok {
			return msg
		}
	}
	if msg, ok := messageTables[DefaultLocale][category]; ok {
		return msg
	}
	return category.String()
}

// HasLocale reports whether a message table exists for locale
func HasLocale(locale string) bool {
	_, ok := messageTables[locale]
	return ok
}

// Locales returns the known locales in sorted order
func Locales() []string {
	locales := make([]string, 0, len(messageTables))
	for l := range messageTables {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}
