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
Package network defines the IP layer seen by the tunnel: [IPDevice], the userspace stack that turns IP packets into
TCP and UDP flows, and [PacketProxy], the handler the stack uses for UDP flows.

The sub-package [network/lwip2transport] implements an [IPDevice] on top of lwIP, and [network/dnstruncate] is a
[PacketProxy] for adapters that cannot carry UDP.
*/
package network
