// Copyright 2023 The Outline Authors
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

/*
Package lwip2transport is an [network.IPDevice] that terminates TCP and UDP inside the process, using the
[go-tun2socks] binding of the [lwIP] stack.

IP packets written to the device are parsed by lwIP. Each TCP flow is dialed through a [transport.StreamDialer] and
each UDP flow gets a session from a [network.PacketProxy]. Packets produced by lwIP, such as TCP segments from the
proxy or UDP responses, are returned by Read.

lwIP keeps global state, so there is one device per process:

	dev, err := lwip2transport.ConfigureDevice(adapter, packetProxy)

[go-tun2socks]: https://github.com/eycorsican/go-tun2socks
[lwIP]: https://savannah.nongnu.org/projects/lwip/
*/
package lwip2transport
