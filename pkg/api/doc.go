// Package api provides the HTTP REST API server for the workspace service.
//
// # Overview
//
// This package exposes workspaces, memberships, invitations, projects,
// sections, and goals as RESTful endpoints. Authorization decisions are
// not made here: handlers pass the authenticated caller down to the
// service layer, which re-resolves the caller's role inside its own
// transaction. The API layer only translates service sentinels to HTTP
// statuses.
//
// # Architecture
//
// The API is built on gorilla/mux and organized into domain-specific
// handler groups:
//
//   - Workspaces: Create, list, retrieve, and delete workspaces
//   - Members: Add, re-role, remove members, and transfer ownership
//   - Invitations: Issue, list, revoke, and accept email invitations
//   - Projects and Sections: Ordered resources with an explicit move endpoint
//   - Goals: Workspace-visible and private objectives
//
// # Status Mapping
//
// Permission denials are 403, missing resources 404, and violations of
// membership invariants (duplicate member, last owner, owner-role grants,
// serialization conflicts) are 409.
//
// # Usage
//
//	server := api.NewServer(workspaceSvc, sectionSvc, goalSvc, logger, metrics)
//	http.ListenAndServe(":8080", authMiddleware.Handler(server))
package api
