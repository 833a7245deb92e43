// Copyright (c) 2019 PT Defender Nusa Semesta and contributors, All rights reserved.
//
// This file is part of Dscan.
//
// Dscan is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation version 3 of the License.
//
// Dscan is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Dscan. If not, see <https://www.gnu.org/licenses/>.

package plugin

import (
	"strings"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/shared/str"
)

// Matching here is deliberately permissive: a service missing the
// attribute a selector constrains still matches. Detectors get to run
// against poorly identified services instead of being silently skipped,
// trading some false positives for recall.

// MatchesService check service against the service-level selectors
func MatchesService(sel Selectors, svc network.Service) bool {
	return hasMatchingServiceName(sel, svc) &&
		hasMatchingSoftware(sel, svc) &&
		hasMatchingWebService(sel, svc)
}

// MatchesOs check the target OS guesses against the OS selector
func MatchesOs(sel Selectors, target network.TargetInfo) (ret bool) {
	if sel.OsClass == nil {
		return true
	}
	vendors := str.ToLowerSet(sel.OsClass.Vendors)
	families := str.ToLowerSet(sel.OsClass.OsFamilies)
	for _, os := range target.OperatingSystems {
		if len(vendors) > 0 {
			if _, ok := vendors[strings.ToLower(os.Vendor)]; !ok {
				continue
			}
		}
		if len(families) > 0 {
			if _, ok := families[strings.ToLower(os.OsFamily)]; !ok {
				continue
			}
		}
		if os.Accuracy < sel.OsClass.MinAccuracy {
			continue
		}
		ret = true
		break
	}
	return
}

// FilterServices returns the services matching sel in input order.
// Returns nil when the OS predicate fails regardless of services, and
// the full input when sel has no service-level constraint.
func FilterServices(sel Selectors, services []network.Service, target network.TargetInfo) []network.Service {
	if !MatchesOs(sel, target) {
		return nil
	}
	if !sel.hasServiceConstraint() {
		return services
	}
	var matched []network.Service
	for _, svc := range services {
		if MatchesService(sel, svc) {
			matched = append(matched, svc)
		}
	}
	return matched
}

func hasMatchingServiceName(sel Selectors, svc network.Service) (ret bool) {
	if len(sel.ServiceNames) == 0 {
		return true
	}
	// a service the port scanner could not name matches any name selector
	if svc.Name == "" {
		return true
	}
	names := str.ToLowerSet(sel.ServiceNames)
	_, ret = names[strings.ToLower(svc.Name)]
	return
}

func hasMatchingSoftware(sel Selectors, svc network.Service) bool {
	if sel.Software == "" {
		return true
	}
	// unidentified software matches any software selector
	if svc.Software == nil {
		return true
	}
	return str.CaseInsensitiveEquals(
		strings.TrimSpace(sel.Software), strings.TrimSpace(svc.Software.Name))
}

func hasMatchingWebService(sel Selectors, svc network.Service) bool {
	if !sel.ForWebService {
		return true
	}
	return svc.IsWebService()
}
