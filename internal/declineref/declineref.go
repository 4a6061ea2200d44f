// Package declineref formats and parses the posting reference tokens that decline reasons may embed.
//
// A token has the form [REF:<postingID>:<label>]. The label may not contain ']'. Reasons are stored
// opaquely; only the presentation layer turns tokens into links.
package declineref

import (
	"regexp"
	"strconv"
	"strings"
)

// Version of the token format
const Version = 1

var tokenPattern = regexp.MustCompile(`\[REF:(\d+):([^\]]*)\]`)

// Ref is one posting reference found in a reason
type Ref struct {
	PostingID uint   `json:"posting_id"`
	Label     string `json:"label"`
	// Start and End are byte offsets of the token inside the reason
	Start int `json:"start"`
	End   int `json:"end"`
}

// Format builds the token for a posting
func Format(postingID uint, label string) string {
	label = strings.NewReplacer("]", ")", "[", "(").Replace(strings.TrimSpace(label))
	return "[REF:" + strconv.FormatUint(uint64(postingID), 10) + ":" + label + "]"
}

// Parse returns every well-formed token in reason, in order of appearance
func Parse(reason string) []Ref {
	var refs []Ref
	for _, m := range tokenPattern.FindAllStringSubmatchIndex(reason, -1) {
		id, err := strconv.ParseUint(reason[m[2]:m[3]], 10, 32)
		if err != nil {
			continue
		}
		refs = append(refs, Ref{
			PostingID: uint(id),
			Label:     reason[m[4]:m[5]],
			Start:     m[0],
			End:       m[1],
		})
	}
	return refs
}

// Plain replaces every token with its label, for channels that cannot render links
func Plain(reason string) string {
	return tokenPattern.ReplaceAllString(reason, "$2")
}
