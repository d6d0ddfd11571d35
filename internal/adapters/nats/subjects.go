package natsadapter

import "strings"

// Subject layout. Session ids become the last token.
const (
	SubjectRoutePrefix   = "safespot.route."
	SubjectClosedPrefix  = "safespot.session.closed."
	SubjectHazardPrefix  = "safespot.hazard."
	SubjectRouteWildcard = "safespot.route.>"
)

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_")

// Token makes a session id safe to use as a single subject token.
func Token(id string) string {
	if id == "" {
		return "_"
	}
	return tokenReplacer.Replace(id)
}

func RouteSubject(id string) string  { return SubjectRoutePrefix + Token(id) }
func ClosedSubject(id string) string { return SubjectClosedPrefix + Token(id) }
func HazardSubject(id string) string { return SubjectHazardPrefix + Token(id) }
