package quality

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/record"
)

// phonePattern accepts an optional "+", an optional leading 1, then 9 to 15
// digits. Spaces and hyphens are stripped before matching.
var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

var phoneStripper = strings.NewReplacer(" ", "", "-", "")

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("kobo_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(phoneStripper.Replace(fl.Field().String()))
	}); err != nil {
		panic(fmt.Sprintf("register kobo_phone: %v", err))
	}
	return v
}

// passes reports whether v satisfies the validator tag.
func passes(v any, tag string) bool {
	return validate.Var(v, tag) == nil
}

// isUUID accepts the canonical 8-4-4-4-12 form and the compact 32 hex digit
// form the source uses for form ids.
func isUUID(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 32 && !strings.Contains(s, "-") {
		s = s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
	}
	return passes(s, "uuid")
}

func isPhone(s string) bool {
	return passes(s, "kobo_phone")
}

// subject is what a rule sees: the normalized fragment, the raw record it
// came from and the evaluation clock.
type subject[T any] struct {
	v   T
	raw record.Record
	now time.Time
}

// rule reports whether a subject violates it and the offending value.
type rule[T any] struct {
	issue model.IssueType
	check func(s subject[T]) (value any, violated bool)
}

// evaluate runs every rule against s. Each rule is guarded on its own, so a
// panicking rule becomes a processing_error issue and the remaining rules
// still run.
func evaluate[T any](entity model.EntityType, id string, s subject[T], rules []rule[T]) []model.Issue {
	var out []model.Issue
	for _, r := range rules {
		if is, ok := runRule(entity, id, s, r); ok {
			out = append(out, is)
		}
	}
	return out
}

func runRule[T any](entity model.EntityType, id string, s subject[T], r rule[T]) (issue model.Issue, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			issue = processingError(entity, id, fmt.Errorf("rule %s: %v", r.issue, p), s.now)
			ok = true
		}
	}()

	value, violated := r.check(s)
	if !violated {
		return model.Issue{}, false
	}
	return model.Issue{
		EntityType: entity,
		Type:       r.issue,
		EntityID:   id,
		Value:      value,
		CreatedAt:  s.now,
	}, true
}

func processingError(entity model.EntityType, id string, err error, now time.Time) model.Issue {
	return model.Issue{
		EntityType: entity,
		Type:       ProcessingError,
		EntityID:   id,
		Details:    map[string]any{"error": err.Error()},
		CreatedAt:  now,
	}
}

// blank returns a check that flags an empty field.
func blank[T any](field func(T) string) func(subject[T]) (any, bool) {
	return func(s subject[T]) (any, bool) {
		return nil, strings.TrimSpace(field(s.v)) == ""
	}
}

// rawValue returns the raw text of k for issue payloads, or nil when blank.
func rawValue(r record.Record, k record.Key) any {
	if s := r.String(k); s != "" {
		return s
	}
	return nil
}
