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

package idgen

import (
	"github.com/teris-io/shortid"
)

var sid, _ = shortid.New(1, shortid.DefaultABC, 1811)

// GenerateID creates random shortid for a scan run
func GenerateID() (id string, err error) {
	return sid.Generate()
}
