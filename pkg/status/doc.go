// Package status holds the statuspage domain model: organizations and their
// services, incidents, maintenance windows and team members, plus the status
// enumerations and the public status snapshot served to status pages.
package status
