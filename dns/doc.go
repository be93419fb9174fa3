// Copyright 2023 Jigsaw Operations LLC
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
Package dns sends DNS queries through a [transport.StreamDialer] or [transport.PacketDialer].

A [RoundTripper] runs one DNS transaction. [NewTCPRoundTripper] frames messages with the 2-byte length prefix of
[DNS-over-TCP], and [NewUDPRoundTripper] sends one datagram per query. Both open a new connection per query, so
they can also be used to check that an adapter reaches a resolver.

[DNS-over-TCP]: https://datatracker.ietf.org/doc/html/rfc7766
*/
package dns
