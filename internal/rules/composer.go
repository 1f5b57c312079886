package rules

import "strings"

// ComposeInput is everything the alert-text composer needs for one callout.
type ComposeInput struct {
	Address      string
	City         string
	IncidentText string
	Priority     string
	Comments     string
	SiteName     string
	IsABA        bool
}

// ComposeAlertText builds the single-line message body the dispatch service
// forwards to pagers. Commas are stripped from the address so the receiving
// side does not split it; a comment gets a "# " prefix; the "-" token
// separates the text from the trailing unit list. A blank address falls back
// to the bare city name.
func ComposeAlertText(in ComposeInput, units []string) string {
	address := strings.TrimSpace(strings.ReplaceAll(in.Address, ",", ""))
	if address == "" {
		address = strings.TrimSpace(in.City)
	}

	comments := strings.TrimSpace(in.Comments)
	if comments != "" {
		comments = "# " + comments
	}

	var parts []string
	if in.IsABA {
		parts = []string{"ABA", address, strings.TrimSpace(in.SiteName), strings.TrimSpace(in.Priority), strings.TrimSpace(in.IncidentText), comments, "-"}
	} else {
		parts = []string{strings.TrimSpace(in.IncidentText), address, strings.TrimSpace(in.Priority), comments, "-"}
	}
	parts = append(parts, units...)

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
