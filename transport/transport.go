// Copyright 2019 Jigsaw Operations LLC
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
Package transport has the core types to work with transport layer connections.

# Connections

Connections enable communication between two endpoints over an abstract transport. There are two types of connections:

  - Stream connections, like TCP and the SOCK_STREAM Posix socket type. They are represented by [StreamConn] objects.
  - Datagram connections, like UDP and the SOCK_DGRAM Posix socket type. They are represented by [net.Conn] objects.

# Dialers and listeners

Adapters establish outbound connections through a proxy backend. Stream connections are created with a
[StreamDialer], and unbound packet connections that may send to many destinations are created with a
[PacketListener]. A [PacketListenerDialer] turns a [PacketListener] into a [PacketDialer] for a single destination.

The sub-packages implement the proxy protocols used by the adapters.
*/
package transport
