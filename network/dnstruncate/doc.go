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
Package dnstruncate answers DNS queries locally for adapters that cannot carry UDP.

Every query gets an empty response with the TC (truncated) bit set, which makes the client retry over TCP. No
packet leaves the device. UDP traffic to other ports is rejected with [network.ErrPortUnreachable].

The proxy is meant to sit behind a [network.DelegatePacketProxy]:

	dp.SetProxy(dnstruncate.NewPacketProxy())
*/
package dnstruncate
