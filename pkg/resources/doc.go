// Package resources is the typed view of the upstream console API:
// users, their permissions and memberships, clients (teams),
// organizations, API tokens and per-client usage counts.
package resources
