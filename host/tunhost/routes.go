// Copyright 2026 The YTFlow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tunhost

import (
	"net/netip"

	"github.com/ytflow/tunnelcore/host"
)

// localSubnets stay outside the tunnel when a route set excludes local subnets.
var localSubnets = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
}

type routePlan struct {
	// include is routed to the TUN device.
	include []netip.Prefix
	// exclude falls through to the main table.
	exclude []netip.Prefix
}

// planRoutes lists the IPv4 routes to install for rs. Prefixes are masked and duplicates removed.
func planRoutes(rs host.RouteSet) routePlan {
	var plan routePlan
	seen := make(map[netip.Prefix]bool)
	add := func(dst *[]netip.Prefix, prefixes []netip.Prefix) {
		for _, p := range prefixes {
			if !p.IsValid() || !p.Addr().Is4() {
				continue
			}
			p = p.Masked()
			if seen[p] {
				continue
			}
			seen[p] = true
			*dst = append(*dst, p)
		}
	}
	add(&plan.include, rs.IPv4Inclusion)
	add(&plan.exclude, rs.IPv4Exclusion)
	if rs.ExcludeLocalSubnets {
		add(&plan.exclude, localSubnets)
	}
	return plan
}
