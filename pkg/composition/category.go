package composition

import "fmt"

// Category is one of the fixed composition guidance outcomes
type Category int

const (
	Unknown Category = iota
	SearchingForSubject
	NoSubject
	RuleOfThirdsViolation
	CenteredSubject
	TooSmall
	TooLarge
	AspectSuggestPortrait
	AspectSuggestLandscape
	Optimal
)

var categoryNames = map[Category]string{
	Unknown:                "unknown",
	SearchingForSubject:    "searching_for_subject",
	NoSubject:              "no_subject",
	RuleOfThirdsViolation:  "rule_of_thirds_violation",
	CenteredSubject:        "centered_subject",
	TooSmall:               "too_small",
	TooLarge:               "too_large",
	AspectSuggestPortrait:  "aspect_suggest_portrait",
	AspectSuggestLandscape: "aspect_suggest_landscape",
	Optimal:                "optimal",
}

// Categories lists every guidance category in cascade order
func Categories() []Category {
	return []Category{
		SearchingForSubject,
		NoSubject,
		RuleOfThirdsViolation,
		CenteredSubject,
		TooSmall,
		TooLarge,
		AspectSuggestPortrait,
		AspectSuggestLandscape,
		Optimal,
	}
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory converts an identifier produced by String back to a Category
func ParseCategory(name string) (Category, error) {
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return Unknown, fmt.Errorf("unknown category: %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Actionable reports whether the category asks the user to change something
func (c Category) Actionable() bool {
	switch c {
	case RuleOfThirdsViolation, CenteredSubject, TooSmall, TooLarge,
		AspectSuggestPortrait, AspectSuggestLandscape:
		return true
	}
	return false
}
