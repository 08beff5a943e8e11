// Package notify renders viewer-facing notices from a per-locale message
// catalog.
package notify

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a notice template.
type Key string

const (
	KeySessionStarted Key = "session.started"
	KeySessionStopped Key = "session.stopped"
	KeyTargetLost     Key = "session.target_lost"
	KeyResumed        Key = "session.resumed"
	KeyResumeFailed   Key = "session.resume_failed"
	KeyCycleProgress  Key = "cycle.progress"
	KeyCycleStopped   Key = "cycle.stopped"
	KeyPointSaved     Key = "point.saved"
	KeyCommandFailed  Key = "command.failed"
)

// BaseLocale is used when a viewer's locale has no catalog.
var BaseLocale = language.English

var templates = map[language.Tag]map[Key]string{
	language.English: {
		KeySessionStarted: "Spectating %s (%s).",
		KeySessionStopped: "Stopped spectating.",
		KeyTargetLost:     "Stopped spectating %s: the target is gone.",
		KeyResumed:        "Resumed %s.",
		KeyResumeFailed:   "Could not resume %s.",
		KeyCycleProgress:  "Now watching %s (%d of %d).",
		KeyCycleStopped:   "Cycle stopped.",
		KeyPointSaved:     "Saved point %s.",
		KeyCommandFailed:  "Command failed: %s.",
	},
	language.Spanish: {
		KeySessionStarted: "Observando %s (%s).",
		KeySessionStopped: "Dejaste de observar.",
		KeyTargetLost:     "Dejaste de observar %s: el objetivo ya no existe.",
		KeyResumed:        "Se reanudó %s.",
		KeyResumeFailed:   "No se pudo reanudar %s.",
		KeyCycleProgress:  "Ahora observando %s (%d de %d).",
		KeyCycleStopped:   "Ciclo detenido.",
		KeyPointSaved:     "Punto %s guardado.",
		KeyCommandFailed:  "El comando falló: %s.",
	},
}

// Catalog formats notices. It is safe for concurrent use once built.
type Catalog struct {
	catalog *catalog.Builder
	matcher language.Matcher
}

// New builds the catalog from the bundled templates.
func New() (*Catalog, error) {
	builder := catalog.NewBuilder(catalog.Fallback(BaseLocale))
	tags := []language.Tag{BaseLocale}
	for tag, messages := range templates {
		for key, text := range messages {
			if err := builder.SetString(tag, string(key), text); err != nil {
				return nil, fmt.Errorf("register %s/%s: %w", tag, key, err)
			}
		}
		if tag != BaseLocale {
			tags = append(tags, tag)
		}
	}
	return &Catalog{catalog: builder, matcher: language.NewMatcher(tags)}, nil
}

// Printer returns a printer for the best match of locale. Unknown or empty
// locales fall back to BaseLocale.
func (c *Catalog) Printer(locale string) *message.Printer {
	tag := BaseLocale
	if locale != "" {
		if parsed, err := language.Parse(locale); err == nil {
			matched, _, confidence := c.matcher.Match(parsed)
			if confidence != language.No {
				base, _ := matched.Base()
				tag = language.Make(base.String())
			}
		}
	}
	return message.NewPrinter(tag, message.Catalog(c.catalog))
}

// Format renders key for locale.
func (c *Catalog) Format(locale string, key Key, args ...any) string {
	return c.Printer(locale).Sprintf(string(key), args...)
}

// Keys lists every key known to the base locale.
func Keys() []Key {
	keys := make([]Key, 0, len(templates[BaseLocale]))
	for key := range templates[BaseLocale] {
		keys = append(keys, key)
	}
	return keys
}
