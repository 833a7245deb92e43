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

package vuln

import (
	"strconv"
	"strings"
)

// RenderAdvisories renders vulnerabilities as newline-delimited
// text-format blocks, one per advisory, in input order. The format is
// stable and consumed by downstream tooling, do not reorder fields.
func RenderAdvisories(advisories []Vulnerability) string {
	var sb strings.Builder
	for _, v := range advisories {
		sb.WriteString("vulnerabilities {\n")
		sb.WriteString("  main_id {\n")
		sb.WriteString("    publisher: " + quote(v.MainID.Publisher) + "\n")
		sb.WriteString("    value: " + quote(v.MainID.Value) + "\n")
		sb.WriteString("  }\n")
		sb.WriteString("  severity: " + v.Severity.String() + "\n")
		sb.WriteString("  title: " + quote(v.Title) + "\n")
		sb.WriteString("  description: " + quote(v.Description) + "\n")
		sb.WriteString("}\n")
	}
	return sb.String()
}

func quote(s string) string {
	return strconv.Quote(s)
}
