// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

// Package rumi provides typed HTTP access to the Rumi farm-management
// vendor API.
//
// The package exposes three operations (farm list, location history, animal
// roster) behind the API interface, a uniform error taxonomy
// (UnauthorizedError, NotFoundError, StatusError, TransportError), and a
// bounded exponential-backoff retry policy applied around every call.
package rumi
