// SPDX-License-Identifier: Apache-2.0
//
// Copyright 2025 Jeremy Hahn
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request traffic counters, shared by all channel implementations.
var (
	// RequestsSent counts signaling requests issued, by method.
	RequestsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "securecall",
		Subsystem: "transport",
		Name:      "requests_sent_total",
		Help:      "Signaling requests sent to the relay.",
	}, []string{"method"})

	// RequestFailures counts failed requests, by method.
	RequestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "securecall",
		Subsystem: "transport",
		Name:      "request_failures_total",
		Help:      "Signaling requests that completed with an error.",
	}, []string{"method"})

	// RequestsCancelled counts requests abandoned before completion.
	RequestsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "securecall",
		Subsystem: "transport",
		Name:      "requests_cancelled_total",
		Help:      "Signaling requests cancelled by the caller.",
	})

	// UpdatesReceived counts server-initiated call updates, by kind.
	UpdatesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "securecall",
		Subsystem: "transport",
		Name:      "updates_received_total",
		Help:      "Server-initiated call updates received.",
	}, []string{"kind"})
)
