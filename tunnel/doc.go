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
Package tunnel is the data-plane core of the VPN client.

A [Plugin] is driven by a [host.Channel]. Connect resolves the default adapter configuration, builds the adapter
and creates a [Session], which owns a user-space IP stack whose flows are relayed through the adapter. The host
exchanges IP packets with the session over a loopback [host.Transport]:

	host --Encapsulate--> transport --UDP--> relay --> IP stack --> adapter
	host <--Decapsulate-- pending queue <-- IP stack <-- adapter

Packets read from the IP stack wait in a [PendingQueue]. The session sends a wake datagram to the host transport
when the queue becomes non-empty, and the host drains the queue with [Plugin.Decapsulate].
*/
package tunnel
