package rules

import (
	"fmt"
	"strings"

	"callout_framework/internal/aba"
)

// CodeABA is the incident code for automatic fire-alarm callouts. The
// comparison is case sensitive: only this exact spelling routes through the
// alarm-system register.
const CodeABA = "BAAl"

// ABALabel is the fixed label for alarm callouts; they carry no pickliste row.
const ABALabel = "Fire alarm (ABA)"

// ABARuleResult records whether the alarm-system override replaced the base
// units and why.
type ABARuleResult struct {
	Applied bool
	Reason  string
	Units   []string
}

// UnitsFromSite parses the comma-joined response list of a matched site.
func UnitsFromSite(site *aba.Site, useSecondary bool) []string {
	chosen := site.PrimaryResponse
	if useSecondary {
		chosen = site.SecondaryResponse
	}
	var units []string
	for _, p := range strings.Split(chosen, ",") {
		if p = strings.TrimSpace(p); p != "" {
			units = append(units, p)
		}
	}
	return units
}

// ApplyABARules decides the final unit source for an incident. For CodeABA
// the units must come from the matched site's response list; any other
// incident keeps its base units untouched.
func ApplyABARules(incidentCode string, site *aba.Site, baseUnits []string, useSecondary bool) ABARuleResult {
	code := strings.TrimSpace(incidentCode)
	if code != CodeABA {
		return ABARuleResult{Applied: false, Reason: "not an alarm-system incident", Units: baseUnits}
	}
	if site == nil {
		return ABARuleResult{Applied: false, Reason: "alarm incident but address not found in the alarm-system register"}
	}
	which := "primary"
	if useSecondary {
		which = "secondary"
	}
	units := UnitsFromSite(site, useSecondary)
	if len(units) == 0 {
		return ABARuleResult{
			Applied: false,
			Reason:  fmt.Sprintf("alarm site matched (%s / %s) but its %s response list is empty", site.DOANo, site.Name, which),
		}
	}
	return ABARuleResult{
		Applied: true,
		Reason:  fmt.Sprintf("alarm site matched (%s / %s); %s response used", site.DOANo, site.Name, which),
		Units:   units,
	}
}
