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

package str

import (
	"strings"
)

// AppendUniq append string to slice if it its not there yet
func AppendUniq(slice []string, i string) []string {
	for _, ele := range slice {
		if ele == i {
			return slice
		}
	}
	return append(slice, i)
}

// CaseInsensitiveEquals compare s and t ignoring case
func CaseInsensitiveEquals(s, t string) bool {
	return strings.EqualFold(s, t)
}

// CsvToSlice convert s to []string; where s is in the form of string, string, string
func CsvToSlice(s string) []string {
	cleaned := strings.Replace(s, ",", " ", -1)
	sSlice := strings.Fields(cleaned)
	return sSlice
}

// IsInCSVList find term in s, where s is in the form of "string, string,string ..."
func IsInCSVList(s string, term string) (found bool) {
	sSlice := CsvToSlice(s)
	for _, v := range sSlice {
		if v != term {
			continue
		}
		found = true
		break
	}
	return
}

// ToLowerSet convert entries to a lowercased membership set, skipping empties
func ToLowerSet(entries []string) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, v := range entries {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}
