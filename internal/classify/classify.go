// Package classify provides the heuristic clinical-relevance check for scan
// sequence names. The result only seeds the clinical flag of a newly seen
// scan type; a human reviewer confirms or overrides it afterwards.
package classify

import "regexp"

// kspaceRe excludes raw k-space dumps, which can otherwise match the
// sequence rules below.
var kspaceRe = regexp.MustCompile(`(?i)kspace`)

// clinicalRes are the ordered sequence-name rules. The t1/t2 rules require
// the token not to be preceded by a letter so that names like "at1las" do
// not match.
var clinicalRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z])t1`),
	regexp.MustCompile(`(?i)(?:^|[^a-zA-Z])t2`),
	regexp.MustCompile(`(?i)mprage`),
	regexp.MustCompile(`(?i)qsm`),
	regexp.MustCompile(`(?i)flair`),
	regexp.MustCompile(`(?i)fl3d`),
}

// LikelyClinical reports whether a sequence name looks diagnostically
// significant. The hint is never authoritative.
func LikelyClinical(name string) bool {
	if kspaceRe.MatchString(name) {
		return false
	}
	for _, re := range clinicalRes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
