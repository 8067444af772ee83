// Package app wires configuration, storage, services and the HTTP router
// into a runnable server.
//
// # Initialization Flow
//
//  1. Load configuration (defaults, YAML file, .env, environment)
//  2. Initialize logging and OpenTelemetry
//  3. Open the database and the file store
//  4. Create services with their dependencies
//  5. Build the chi router and the HTTP server
//
// Bootstrap migrates the schema and seeds the indicator catalog. Run does
// both and serves until SIGINT or SIGTERM, then shuts down the server, the
// WebSocket hub, telemetry and the database in that order.
//
// The package never calls os.Exit; errors are returned to cmd/datafit.
package app
