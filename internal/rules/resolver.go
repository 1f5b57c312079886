package rules

import (
	"strings"

	"callout_framework/internal/aba"
	"callout_framework/internal/addresses"
	"callout_framework/internal/faults"
	"callout_framework/internal/incidents"
)

// ResolvedCallout is the outcome of resolving one address + incident code
// into a concrete unit list.
type ResolvedCallout struct {
	Address      addresses.Address
	IncidentCode string
	Label        string
	BaseUnits    []string
	FinalUnits   []string
	Site         *aba.Site
	Rule         ABARuleResult
}

// Resolver turns (address, incident code) into the units that respond.
type Resolver struct {
	Incidents *incidents.Matrix
	ABA       *aba.Directory
}

// Resolve validates the address, looks up the base profile, and applies the
// alarm-system override. Alarm incidents take their label from ABALabel and
// need no profile row; every other code must exist in the address's district
// sheet. An alarm incident without a register match is an error, not a
// silent empty callout.
func (r *Resolver) Resolve(addr addresses.Address, incidentCode string, useSecondary bool) (*ResolvedCallout, error) {
	code := strings.TrimSpace(incidentCode)
	if code == "" {
		return nil, faults.Invalid("incident code is required")
	}
	if strings.TrimSpace(addr.Street) == "" || strings.TrimSpace(addr.HouseNo) == "" {
		return nil, faults.Invalid("address needs at least a street and a house number")
	}

	out := &ResolvedCallout{Address: addr, IncidentCode: code}

	if code != CodeABA {
		profile := r.Incidents.GetProfile(addr.DistrictNo, code)
		if profile == nil {
			return nil, faults.NotFound("no incident %q for district %q", code, addr.DistrictNo)
		}
		out.Label = profile.Label
		out.BaseUnits = profile.Units
	} else {
		// Alarm callouts never take units from the district sheet.
		out.Label = ABALabel
	}

	out.Site = r.ABA.MatchComponents(addr.Street, addr.HouseNo, addr.HouseLetter, addr.Postcode)
	out.Rule = ApplyABARules(code, out.Site, out.BaseUnits, useSecondary)

	if code == CodeABA && !out.Rule.Applied {
		return nil, faults.NotFound("cannot resolve alarm callout for %q: %s", addr.Display, out.Rule.Reason)
	}
	out.FinalUnits = out.Rule.Units
	return out, nil
}
